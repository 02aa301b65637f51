// Package portfolio computes per-position and portfolio-wide valuation.
package portfolio

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// chartPalette is cycled round-robin over chart entries by position order
var chartPalette = []string{
	"#4dc9f6", "#f67019", "#f53794", "#537bc4", "#acc236",
	"#166a8f", "#00a950", "#58595b", "#8549ba", "#8b0000",
	"#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
}

// SymbolRefresher re-fetches one symbol's price on demand
type SymbolRefresher interface {
	RefreshSymbol(ctx context.Context, symbol string) (*models.Stock, error)
}

// Aggregator derives valuations and chart series from positions and the
// price cache. Positions with bad data are skipped, never fatal.
type Aggregator struct {
	db        *database.DB
	refresher SymbolRefresher
	log       zerolog.Logger
}

// NewAggregator creates an Aggregator. refresher may be nil to disable
// opportunistic price refreshes during chart building.
func NewAggregator(db *database.DB, refresher SymbolRefresher, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		db:        db,
		refresher: refresher,
		log:       log.With().Str("component", "portfolio").Logger(),
	}
}

// holding pairs a position with its stock. stock may be nil when the
// referenced row is missing.
type holding struct {
	position *models.Position
	stock    *models.Stock
}

// Positions returns a user's holdings with per-position valuation
func (a *Aggregator) Positions(ctx context.Context, userID int) ([]models.PositionView, error) {
	holdings, err := a.loadHoldings(userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.PositionView, 0, len(holdings))
	for _, h := range holdings {
		if h.stock == nil {
			a.log.Warn().Int("position_id", h.position.ID).Msg("Skipping position with missing stock")
			continue
		}
		views = append(views, buildPositionView(h))
	}
	return views, nil
}

// Totals computes portfolio-wide valuation for a user. Values are summed
// first; profit/loss and percentage are derived from the sums.
func (a *Aggregator) Totals(ctx context.Context, userID int) (models.PortfolioTotals, error) {
	holdings, err := a.loadHoldings(userID)
	if err != nil {
		return models.PortfolioTotals{}, err
	}
	return computeTotals(holdings), nil
}

// ChartData builds the chart-ready series for a user. Positions without a
// positive price get one opportunistic refresh before being skipped.
func (a *Aggregator) ChartData(ctx context.Context, userID int) (models.ChartData, error) {
	holdings, err := a.loadHoldings(userID)
	if err != nil {
		return models.ChartData{}, err
	}

	for _, h := range holdings {
		if h.stock == nil || h.stock.HasPrice() || a.refresher == nil {
			continue
		}
		refreshed, err := a.refresher.RefreshSymbol(ctx, h.stock.Symbol)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", h.stock.Symbol).Msg("Opportunistic price refresh failed")
			continue
		}
		h.stock.CurrentPrice = refreshed.CurrentPrice
		h.stock.LastUpdated = refreshed.LastUpdated
	}

	return buildChartData(holdings, a.log), nil
}

func (a *Aggregator) loadHoldings(userID int) ([]*holding, error) {
	positions, err := a.db.GetPositionsByUser(userID)
	if err != nil {
		return nil, err
	}

	holdings := make([]*holding, 0, len(positions))
	for _, p := range positions {
		stock, err := a.db.GetStockByID(p.StockID)
		if err != nil {
			a.log.Warn().Err(err).Int("stock_id", p.StockID).Msg("Failed to load stock for position")
			stock = nil
		}
		holdings = append(holdings, &holding{position: p, stock: stock})
	}
	return holdings, nil
}

func buildPositionView(h *holding) models.PositionView {
	view := models.PositionView{
		Position:    *h.position,
		Symbol:      h.stock.Symbol,
		CompanyName: h.stock.CompanyName,
	}

	quantity := h.position.Quantity.InexactFloat64()
	average := h.position.AverageBuyPrice.InexactFloat64()

	if h.stock.CurrentPrice != nil {
		view.CurrentPrice = h.stock.CurrentPrice.InexactFloat64()
		view.CurrentValue = quantity * view.CurrentPrice
	}
	if average > 0 {
		view.Investment = quantity * average
	}
	view.ProfitLoss = view.CurrentValue - view.Investment
	if view.Investment > 0 {
		view.ProfitLossPct = view.ProfitLoss / view.Investment * 100
	}
	return view
}

// computeTotals sums current value and investment across positions, then
// derives the profit/loss figures from the sums. Summing per-position
// percentages instead would weight every position equally.
func computeTotals(holdings []*holding) models.PortfolioTotals {
	var totals models.PortfolioTotals

	for _, h := range holdings {
		quantity := h.position.Quantity.InexactFloat64()

		if h.stock != nil && h.stock.CurrentPrice != nil {
			totals.TotalCurrentValue += quantity * h.stock.CurrentPrice.InexactFloat64()
		}
		if average := h.position.AverageBuyPrice.InexactFloat64(); average > 0 {
			totals.TotalInvestment += quantity * average
		}
	}

	totals.TotalProfitLoss = totals.TotalCurrentValue - totals.TotalInvestment
	if totals.TotalInvestment > 0 {
		totals.ProfitLossPercentage = totals.TotalProfitLoss / totals.TotalInvestment * 100
	}
	return totals
}

// buildChartData emits one (label, value, color) entry per position holding
// shares of a priced stock. Anything else is skipped.
func buildChartData(holdings []*holding, log zerolog.Logger) models.ChartData {
	chart := models.ChartData{
		Labels: []string{},
		Values: []float64{},
		Colors: []string{},
	}

	for i, h := range holdings {
		if !h.position.Quantity.IsPositive() {
			log.Warn().Int("position_id", h.position.ID).Msg("Skipping position with non-positive quantity")
			continue
		}
		if h.stock == nil {
			log.Warn().Int("position_id", h.position.ID).Msg("Skipping position with missing stock")
			continue
		}
		if !h.stock.HasPrice() {
			log.Warn().Str("symbol", h.stock.Symbol).Msg("Skipping position without a usable price")
			continue
		}

		value := h.position.Quantity.Mul(*h.stock.CurrentPrice).InexactFloat64()
		chart.Labels = append(chart.Labels, h.stock.Symbol)
		chart.Values = append(chart.Values, value)
		chart.Colors = append(chart.Colors, chartPalette[i%len(chartPalette)])
	}

	return chart
}
