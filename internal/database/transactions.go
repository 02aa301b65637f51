package database

import (
	"fmt"
	"time"

	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// CreateTransaction appends a transaction record within the unit of work.
// Transactions are immutable once written.
func (t *Tx) CreateTransaction(tr *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, stock_id, transaction_type, quantity, price, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if tr.Timestamp.IsZero() {
		tr.Timestamp = time.Now()
	}
	err := t.tx.QueryRow(query, tr.UserID, tr.StockID, tr.Type, tr.Quantity, tr.Price, tr.Timestamp).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetBuyTransactions retrieves all BUY transactions for a (user, stock) pair
// within the unit of work, oldest first. Source of truth for recomputing the
// average buy price.
func (t *Tx) GetBuyTransactions(userID, stockID int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, stock_id, transaction_type, quantity, price, timestamp
		FROM transactions
		WHERE user_id = $1 AND stock_id = $2 AND transaction_type = $3
		ORDER BY timestamp
	`
	rows, err := t.tx.Query(query, userID, stockID, models.TransactionTypeBuy)
	if err != nil {
		return nil, fmt.Errorf("failed to query buy transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tr models.Transaction
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.StockID, &tr.Type, &tr.Quantity, &tr.Price, &tr.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tr)
	}
	return transactions, rows.Err()
}

const transactionWithSymbolSelect = `
	SELECT t.id, t.user_id, t.stock_id, s.symbol, t.transaction_type, t.quantity, t.price, t.timestamp
	FROM transactions t
	JOIN stocks s ON s.id = t.stock_id
`

// GetTransactionsByUser retrieves a page of a user's transactions, newest first
func (db *DB) GetTransactionsByUser(userID, limit, offset int) ([]*models.Transaction, error) {
	query := transactionWithSymbolSelect + `
		WHERE t.user_id = $1
		ORDER BY t.timestamp DESC
		LIMIT $2 OFFSET $3
	`
	return db.queryTransactions(query, userID, limit, offset)
}

// CountTransactionsByUser returns the total number of transactions for a user
func (db *DB) CountTransactionsByUser(userID int) (int, error) {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// GetRecentTransactions retrieves the most recent transactions across all users
func (db *DB) GetRecentTransactions(limit int) ([]*models.Transaction, error) {
	query := transactionWithSymbolSelect + `
		ORDER BY t.timestamp DESC
		LIMIT $1
	`
	return db.queryTransactions(query, limit)
}

func (db *DB) queryTransactions(query string, args ...any) ([]*models.Transaction, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tr models.Transaction
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.StockID, &tr.Symbol, &tr.Type, &tr.Quantity, &tr.Price, &tr.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tr)
	}
	return transactions, rows.Err()
}
