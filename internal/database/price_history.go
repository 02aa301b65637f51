package database

import (
	"fmt"
	"time"

	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// UpsertDailyCloses inserts or updates a batch of daily closing prices
func (db *DB) UpsertDailyCloses(closes []*models.DailyClose) error {
	if len(closes) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_history (symbol, date, close, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, date) DO UPDATE SET
			close = EXCLUDED.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range closes {
		if _, err := stmt.Exec(c.Symbol, c.Date, c.Close, now); err != nil {
			return fmt.Errorf("failed to insert daily close for %s: %w", c.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily closes: %w", err)
	}
	return nil
}

// GetDailyCloses retrieves up to limit daily closes for a symbol, newest first
func (db *DB) GetDailyCloses(symbol string, limit int) ([]*models.DailyClose, error) {
	query := `
		SELECT id, symbol, date, close, created_at
		FROM price_history
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var closes []*models.DailyClose
	for rows.Next() {
		var c models.DailyClose
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Date, &c.Close, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily close: %w", err)
		}
		closes = append(closes, &c)
	}
	return closes, rows.Err()
}
