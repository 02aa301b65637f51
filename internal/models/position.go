package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a user's current holding of one stock.
// A position row exists only while quantity > 0; the ledger deletes it
// when the quantity reaches zero.
type Position struct {
	ID              int             `json:"id"`
	UserID          int             `json:"user_id"`
	StockID         int             `json:"stock_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
