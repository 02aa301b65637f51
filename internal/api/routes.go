package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/register", handler.Register).Methods("POST")
	api.HandleFunc("/login", handler.Login).Methods("POST")
	api.HandleFunc("/refresh", handler.Refresh).Methods("POST")

	// Authenticated routes
	authed := api.NewRoute().Subrouter()
	authed.Use(handler.authenticate)
	authed.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	authed.HandleFunc("/portfolio/totals", handler.GetPortfolioTotals).Methods("GET")
	authed.HandleFunc("/portfolio/chart", handler.GetPortfolioChart).Methods("GET")
	authed.HandleFunc("/portfolio/buy", handler.Buy).Methods("POST")
	authed.HandleFunc("/portfolio/sell", handler.Sell).Methods("POST")
	authed.HandleFunc("/transactions", handler.RecordTransaction).Methods("POST")
	authed.HandleFunc("/transactions", handler.GetTransactions).Methods("GET")
	authed.HandleFunc("/stocks/{symbol}", handler.GetStock).Methods("GET")
	authed.HandleFunc("/stocks/{symbol}/history", handler.GetStockHistory).Methods("GET")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(handler.authenticate, handler.requireAdmin)
	admin.HandleFunc("/refresh-prices", handler.RefreshPrices).Methods("POST")
	admin.HandleFunc("/users", handler.ListUsers).Methods("GET")
	admin.HandleFunc("/transactions", handler.ListRecentTransactions).Methods("GET")

	return r
}
