package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeTransactionRecorded = "TRANSACTION_RECORDED"
	EventTypePricesRefreshed     = "PRICES_REFRESHED"
	EventTypeTradeExecuted       = "TRADE_EXECUTED"
)

// TransactionEvent is published after a buy or sell commits
type TransactionEvent struct {
	EventType   string       `json:"event_type"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Symbol      string       `json:"symbol"`
	Timestamp   time.Time    `json:"timestamp"`
}

// PriceRefreshEvent is published after a batch price refresh commits
type PriceRefreshEvent struct {
	EventType string    `json:"event_type"`
	Updated   int       `json:"updated"`
	Timestamp time.Time `json:"timestamp"`
}

// BrokerTradeEvent is a trade execution reported by an external broker feed.
// The consumer applies it through the ledger so externally executed trades
// land in the same books as manual ones.
type BrokerTradeEvent struct {
	EventType string          `json:"event_type"`
	UserID    int             `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"` // BUY or SELL
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}
