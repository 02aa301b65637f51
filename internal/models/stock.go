package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock represents a tracked stock symbol shared by all users.
// CurrentPrice and LastUpdated are nil until the first successful refresh.
type Stock struct {
	ID           int              `json:"id"`
	Symbol       string           `json:"symbol"`
	CompanyName  string           `json:"company_name"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	LastUpdated  *time.Time       `json:"last_updated,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// HasPrice reports whether the stock carries a usable positive price.
func (s *Stock) HasPrice() bool {
	return s.CurrentPrice != nil && s.CurrentPrice.IsPositive()
}

// DailyClose represents one day of closing price history for a symbol
type DailyClose struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Close     decimal.Decimal `json:"close"`
	CreatedAt time.Time       `json:"created_at"`
}
