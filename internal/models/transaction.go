package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type constants
const (
	TransactionTypeBuy  = "BUY"
	TransactionTypeSell = "SELL"
)

// Transaction is an immutable record of one buy or sell event.
// Rows are never updated or deleted after creation.
type Transaction struct {
	ID        int             `json:"id"`
	UserID    int             `json:"user_id"`
	StockID   int             `json:"stock_id"`
	Symbol    string          `json:"symbol,omitempty"`
	Type      string          `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Value returns the total value of the transaction
func (t *Transaction) Value() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}
