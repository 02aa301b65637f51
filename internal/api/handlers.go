package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-tracker/internal/auth"
	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/kafka"
	"github.com/stockfolio/portfolio-tracker/internal/ledger"
	"github.com/stockfolio/portfolio-tracker/internal/marketdata"
	"github.com/stockfolio/portfolio-tracker/internal/models"
	"github.com/stockfolio/portfolio-tracker/internal/portfolio"
	"github.com/stockfolio/portfolio-tracker/internal/prices"
)

const defaultTransactionsPerPage = 10

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db         *database.DB
	auth       *auth.Service
	ledger     *ledger.Service
	refresher  *prices.Refresher
	aggregator *portfolio.Aggregator
	producer   *kafka.Producer
	log        zerolog.Logger
}

// NewHandler creates a new Handler. producer may be nil when event
// publishing is disabled.
func NewHandler(
	db *database.DB,
	authService *auth.Service,
	ledgerService *ledger.Service,
	refresher *prices.Refresher,
	aggregator *portfolio.Aggregator,
	producer *kafka.Producer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		db:         db,
		auth:       authService,
		ledger:     ledgerService,
		refresher:  refresher,
		aggregator: aggregator,
		producer:   producer,
		log:        log.With().Str("component", "api").Logger(),
	}
}

// Register handles POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, auth.ErrUsernameTaken) || errors.Is(err, auth.ErrEmailTaken) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Registration failed")
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Login failed")
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

// Refresh handles POST /refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if errors.Is(err, auth.ErrInvalidToken) {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token refresh failed")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

// GetPortfolio handles GET /portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	// Keep prices fresh the same way the dashboard does: stale rows only.
	if _, err := h.refresher.RefreshAll(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Price refresh failed, serving cached prices")
	}

	positions, err := h.aggregator.Positions(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	totals, err := h.aggregator.Totals(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute totals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"totals":    totals,
	})
}

// GetPortfolioTotals handles GET /portfolio/totals
func (h *Handler) GetPortfolioTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.aggregator.Totals(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute totals")
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// GetPortfolioChart handles GET /portfolio/chart
func (h *Handler) GetPortfolioChart(w http.ResponseWriter, r *http.Request) {
	chart, err := h.aggregator.ChartData(r.Context(), userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build chart data")
		return
	}
	respondJSON(w, http.StatusOK, chart)
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (req *tradeRequest) validate() string {
	if req.Symbol == "" {
		return "symbol is required"
	}
	if !req.Quantity.IsPositive() {
		return "quantity must be positive"
	}
	if !req.Price.IsPositive() {
		return "price must be positive"
	}
	return ""
}

// Buy handles POST /portfolio/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.applyTrade(w, r, models.TransactionTypeBuy)
}

// Sell handles POST /portfolio/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.applyTrade(w, r, models.TransactionTypeSell)
}

// RecordTransaction handles POST /transactions
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		tradeRequest
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type != models.TransactionTypeBuy && req.Type != models.TransactionTypeSell {
		respondError(w, http.StatusBadRequest, "type must be BUY or SELL")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	h.executeTrade(w, r, req.Type, req.tradeRequest)
}

func (h *Handler) applyTrade(w http.ResponseWriter, r *http.Request, tradeType string) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	h.executeTrade(w, r, tradeType, req)
}

// executeTrade applies a buy or sell inside one unit of work: the position
// mutation and the transaction record commit together or not at all.
func (h *Handler) executeTrade(w http.ResponseWriter, r *http.Request, tradeType string, req tradeRequest) {
	uow, err := h.db.Begin()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start transaction")
		return
	}
	defer uow.Rollback()

	stock, err := h.refresher.EnsureStock(r.Context(), uow, req.Symbol)
	if errors.Is(err, marketdata.ErrSymbolNotFound) {
		respondError(w, http.StatusNotFound, "could not find stock with symbol "+req.Symbol)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to resolve stock")
		respondError(w, http.StatusInternalServerError, "failed to resolve stock")
		return
	}

	var transaction *models.Transaction
	if tradeType == models.TransactionTypeBuy {
		transaction, err = h.ledger.Buy(uow, userID(r), stock.ID, req.Quantity, req.Price)
	} else {
		transaction, err = h.ledger.Sell(uow, userID(r), stock.ID, req.Quantity, req.Price)
	}
	if errors.Is(err, ledger.ErrInsufficientShares) {
		respondError(w, http.StatusUnprocessableEntity, "you cannot sell more shares than you own")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Str("type", tradeType).Msg("Trade failed")
		respondError(w, http.StatusInternalServerError, "trade failed")
		return
	}

	if err := uow.Commit(); err != nil {
		h.log.Error().Err(err).Msg("Trade commit failed")
		respondError(w, http.StatusInternalServerError, "trade failed")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishTransactionRecorded(r.Context(), transaction, stock.Symbol); err != nil {
			h.log.Warn().Err(err).Msg("Failed to publish transaction event")
		}
	}

	transaction.Symbol = stock.Symbol
	respondJSON(w, http.StatusCreated, transaction)
}

// GetTransactions handles GET /transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = defaultTransactionsPerPage
	}

	transactions, err := h.db.GetTransactionsByUser(userID(r), perPage, (page-1)*perPage)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	total, err := h.db.CountTransactionsByUser(userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count transactions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"page":         page,
		"per_page":     perPage,
		"total":        total,
	})
}

// GetStock handles GET /stocks/{symbol}; it resolves the symbol through the
// quote cache and provider without touching stored rows
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	quote, err := h.refresher.Lookup(r.Context(), symbol)
	if errors.Is(err, marketdata.ErrSymbolNotFound) {
		respondError(w, http.StatusNotFound, "could not find stock with symbol "+symbol)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Stock lookup failed")
		respondError(w, http.StatusInternalServerError, "stock lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// GetStockHistory handles GET /stocks/{symbol}/history
func (h *Handler) GetStockHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1mo"
	}

	history, err := h.refresher.SyncHistory(r.Context(), symbol, period)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("History fetch failed")
		respondError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// RefreshPrices handles POST /admin/refresh-prices
func (h *Handler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	updated, err := h.refresher.RefreshAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "price refresh failed")
		return
	}

	if h.producer != nil && updated > 0 {
		if err := h.producer.PublishPricesRefreshed(r.Context(), updated); err != nil {
			h.log.Warn().Err(err).Msg("Failed to publish price refresh event")
		}
	}

	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// ListRecentTransactions handles GET /admin/transactions
func (h *Handler) ListRecentTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.db.GetRecentTransactions(20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
