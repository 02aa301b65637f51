// Package ledger applies buy and sell transactions to portfolio positions,
// keeping the weighted-average cost basis correct.
package ledger

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// ErrInsufficientShares is returned when a sell exceeds the held quantity.
// No state is mutated in that case.
var ErrInsufficientShares = errors.New("insufficient shares")

// Service mutates positions and records transactions. Every operation runs
// inside a caller-provided unit of work; the caller commits or rolls back.
type Service struct {
	log zerolog.Logger
}

// NewService creates a ledger service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("component", "ledger").Logger(),
	}
}

// Buy applies a buy to the (user, stock) position and records a BUY
// transaction in the same unit of work. A new position starts at the buy
// price; an existing one folds the buy into its weighted average.
func (s *Service) Buy(uow *database.Tx, userID, stockID int, quantity, price decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmounts(quantity, price); err != nil {
		return nil, err
	}

	position, err := uow.GetPositionForUpdate(userID, stockID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		position = &models.Position{
			UserID:          userID,
			StockID:         stockID,
			Quantity:        quantity,
			AverageBuyPrice: price,
		}
		if err := uow.CreatePosition(position); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		position.AverageBuyPrice = averageAfterBuy(position.Quantity, position.AverageBuyPrice, quantity, price)
		position.Quantity = position.Quantity.Add(quantity)
		if err := uow.UpdatePosition(position); err != nil {
			return nil, err
		}
	}

	return s.record(uow, userID, stockID, models.TransactionTypeBuy, quantity, price)
}

// Sell applies a sell to the (user, stock) position and records a SELL
// transaction in the same unit of work. The average buy price is unchanged
// by sells; a position whose quantity reaches zero is deleted.
func (s *Service) Sell(uow *database.Tx, userID, stockID int, quantity, price decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmounts(quantity, price); err != nil {
		return nil, err
	}

	position, err := uow.GetPositionForUpdate(userID, stockID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInsufficientShares
	}
	if err != nil {
		return nil, err
	}

	if quantity.GreaterThan(position.Quantity) {
		return nil, ErrInsufficientShares
	}

	position.Quantity = position.Quantity.Sub(quantity)
	if position.Quantity.IsPositive() {
		if err := uow.UpdatePosition(position); err != nil {
			return nil, err
		}
	} else {
		if err := uow.DeletePosition(position.ID); err != nil {
			return nil, err
		}
	}

	return s.record(uow, userID, stockID, models.TransactionTypeSell, quantity, price)
}

// RecalculateAverageBuyPrice recomputes a position's average cost purely from
// its historical BUY transactions and writes it back. Given the same history
// this must agree with the incrementally maintained average.
func (s *Service) RecalculateAverageBuyPrice(uow *database.Tx, userID, stockID int) (decimal.Decimal, error) {
	buys, err := uow.GetBuyTransactions(userID, stockID)
	if err != nil {
		return decimal.Zero, err
	}

	average := weightedAverage(buys)

	position, err := uow.GetPositionForUpdate(userID, stockID)
	if errors.Is(err, database.ErrNotFound) {
		return average, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	position.AverageBuyPrice = average
	if err := uow.UpdatePosition(position); err != nil {
		return decimal.Zero, err
	}

	s.log.Debug().
		Int("user_id", userID).
		Int("stock_id", stockID).
		Str("average", average.String()).
		Msg("Recomputed average buy price from transaction history")

	return average, nil
}

func (s *Service) record(uow *database.Tx, userID, stockID int, txType string, quantity, price decimal.Decimal) (*models.Transaction, error) {
	transaction := &models.Transaction{
		UserID:   userID,
		StockID:  stockID,
		Type:     txType,
		Quantity: quantity,
		Price:    price,
	}
	if err := uow.CreateTransaction(transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

func validateAmounts(quantity, price decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}
	return nil
}
