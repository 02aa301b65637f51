package models

// PositionView is a position joined with its stock and derived valuation,
// as served to the presentation layer.
type PositionView struct {
	Position
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"company_name"`
	CurrentPrice  float64 `json:"current_price"`
	CurrentValue  float64 `json:"current_value"`
	Investment    float64 `json:"investment"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
}

// PortfolioTotals holds portfolio-wide valuation sums for one user
type PortfolioTotals struct {
	TotalCurrentValue    float64 `json:"total_current_value"`
	TotalInvestment      float64 `json:"total_investment"`
	TotalProfitLoss      float64 `json:"total_profit_loss"`
	ProfitLossPercentage float64 `json:"profit_loss_percentage"`
}

// ChartData is the chart-ready series for a user's holdings
type ChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
}
