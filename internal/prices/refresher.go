// Package prices keeps the stocks table's last-known prices fresh.
package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/marketdata"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// Provider resolves symbols to quotes and history
type Provider interface {
	GetStockInfo(ctx context.Context, symbol string) (*marketdata.Quote, error)
	GetDailyHistory(ctx context.Context, symbol, period string) ([]marketdata.DailyClose, error)
}

// Refresher re-fetches stock prices once they go stale
type Refresher struct {
	db         *database.DB
	provider   Provider
	staleAfter time.Duration
	log        zerolog.Logger
}

// NewRefresher creates a Refresher. staleAfter gates how old a price may get
// before a refresh re-fetches it.
func NewRefresher(db *database.DB, provider Provider, staleAfter time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		db:         db,
		provider:   provider,
		staleAfter: staleAfter,
		log:        log.With().Str("component", "prices").Logger(),
	}
}

// RefreshAll re-fetches every stock whose price is missing or older than the
// staleness window, then commits the whole batch at once. Symbols that fail to
// fetch or come back without a usable price are skipped, not fatal. Returns
// the number of stocks updated.
func (r *Refresher) RefreshAll(ctx context.Context) (int, error) {
	stocks, err := r.db.ListStocks()
	if err != nil {
		return 0, fmt.Errorf("failed to load stocks: %w", err)
	}

	uow, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer uow.Rollback()

	updated := 0
	for _, stock := range stocks {
		if !r.isStale(stock) {
			continue
		}

		quote, err := r.provider.GetStockInfo(ctx, stock.Symbol)
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", stock.Symbol).Msg("Skipping symbol, fetch failed")
			continue
		}
		if quote.CurrentPrice <= 0 {
			r.log.Warn().Str("symbol", stock.Symbol).Msg("Skipping symbol, no usable price")
			continue
		}

		if err := uow.UpdateStockPrice(stock.ID, decimal.NewFromFloat(quote.CurrentPrice), time.Now()); err != nil {
			return 0, err
		}
		updated++
	}

	if updated == 0 {
		return 0, nil
	}

	if err := uow.Commit(); err != nil {
		r.log.Error().Err(err).Int("updated", updated).Msg("Price refresh commit failed, batch rolled back")
		return 0, err
	}

	r.log.Info().Int("updated", updated).Msg("Updated stock prices")
	return updated, nil
}

// RefreshSymbol re-fetches one symbol's price regardless of staleness and
// returns the refreshed stock. The row is left untouched when no usable price
// comes back.
func (r *Refresher) RefreshSymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	stock, err := r.db.GetStockBySymbol(symbol)
	if err != nil {
		return nil, err
	}

	quote, err := r.provider.GetStockInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if quote.CurrentPrice <= 0 {
		return stock, nil
	}

	uow, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	price := decimal.NewFromFloat(quote.CurrentPrice)
	now := time.Now()
	if err := uow.UpdateStockPrice(stock.ID, price, now); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	stock.CurrentPrice = &price
	stock.LastUpdated = &now
	return stock, nil
}

// Lookup resolves a symbol to a quote through the provider without touching
// stored rows
func (r *Refresher) Lookup(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	return r.provider.GetStockInfo(ctx, symbol)
}

// EnsureStock returns the stock row for a symbol within the unit of work,
// creating it lazily from a fetched quote on first reference.
func (r *Refresher) EnsureStock(ctx context.Context, uow *database.Tx, symbol string) (*models.Stock, error) {
	stock, err := uow.GetStockBySymbol(symbol)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	quote, err := r.provider.GetStockInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	stock = &models.Stock{
		Symbol:      quote.Symbol,
		CompanyName: quote.CompanyName,
	}
	if quote.CurrentPrice > 0 {
		price := decimal.NewFromFloat(quote.CurrentPrice)
		now := time.Now()
		stock.CurrentPrice = &price
		stock.LastUpdated = &now
	}

	if err := uow.CreateStock(stock); err != nil {
		return nil, err
	}
	return stock, nil
}

// SyncHistory fetches daily closes for a symbol, stores them, and returns the
// stored rows newest first.
func (r *Refresher) SyncHistory(ctx context.Context, symbol, period string) ([]*models.DailyClose, error) {
	history, err := r.provider.GetDailyHistory(ctx, symbol, period)
	if err != nil {
		return nil, err
	}

	closes := make([]*models.DailyClose, 0, len(history))
	for _, h := range history {
		closes = append(closes, &models.DailyClose{
			Symbol: symbol,
			Date:   h.Date,
			Close:  decimal.NewFromFloat(h.Close),
		})
	}

	if err := r.db.UpsertDailyCloses(closes); err != nil {
		return nil, err
	}

	return r.db.GetDailyCloses(symbol, len(closes))
}

func (r *Refresher) isStale(stock *models.Stock) bool {
	if stock.LastUpdated == nil {
		return true
	}
	return time.Since(*stock.LastUpdated) > r.staleAfter
}
