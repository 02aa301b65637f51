package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

const stockSelect = `SELECT id, symbol, company_name, current_price, last_updated, created_at FROM stocks`

// GetStockBySymbol retrieves a stock by symbol
func (db *DB) GetStockBySymbol(symbol string) (*models.Stock, error) {
	return scanStock(db.conn.QueryRow(stockSelect+` WHERE symbol = $1`, symbol))
}

// GetStockByID retrieves a stock by id
func (db *DB) GetStockByID(id int) (*models.Stock, error) {
	return scanStock(db.conn.QueryRow(stockSelect+` WHERE id = $1`, id))
}

// GetStockBySymbol retrieves a stock by symbol within the unit of work
func (t *Tx) GetStockBySymbol(symbol string) (*models.Stock, error) {
	return scanStock(t.tx.QueryRow(stockSelect+` WHERE symbol = $1`, symbol))
}

// ListStocks retrieves all stocks ordered by symbol
func (db *DB) ListStocks() ([]*models.Stock, error) {
	return queryStocks(db.conn, stockSelect+` ORDER BY symbol`)
}

// CreateStock inserts a new stock row within the unit of work.
// Stock rows are created lazily on first reference to a symbol.
func (t *Tx) CreateStock(s *models.Stock) error {
	query := `
		INSERT INTO stocks (symbol, company_name, current_price, last_updated, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	now := time.Now()
	err := t.tx.QueryRow(query, s.Symbol, s.CompanyName, decimalOrNil(s.CurrentPrice), s.LastUpdated, now).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create stock: %w", err)
	}
	s.CreatedAt = now
	return nil
}

// UpdateStockPrice sets a stock's price and staleness timestamp within the unit of work
func (t *Tx) UpdateStockPrice(stockID int, price decimal.Decimal, updatedAt time.Time) error {
	result, err := t.tx.Exec(
		`UPDATE stocks SET current_price = $2, last_updated = $3 WHERE id = $1`,
		stockID, price, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock price: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock %d: %w", stockID, ErrNotFound)
	}
	return nil
}

func queryStocks(q querier, query string, args ...any) ([]*models.Stock, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		s, err := scanStockRow(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

func scanStock(row *sql.Row) (*models.Stock, error) {
	var s models.Stock
	var price sql.NullString
	var lastUpdated sql.NullTime

	err := row.Scan(&s.ID, &s.Symbol, &s.CompanyName, &price, &lastUpdated, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	applyStockNulls(&s, price, lastUpdated)
	return &s, nil
}

func scanStockRow(rows *sql.Rows) (*models.Stock, error) {
	var s models.Stock
	var price sql.NullString
	var lastUpdated sql.NullTime

	if err := rows.Scan(&s.ID, &s.Symbol, &s.CompanyName, &price, &lastUpdated, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan stock: %w", err)
	}

	applyStockNulls(&s, price, lastUpdated)
	return &s, nil
}

func applyStockNulls(s *models.Stock, price sql.NullString, lastUpdated sql.NullTime) {
	if price.Valid {
		if p, err := decimal.NewFromString(price.String); err == nil {
			s.CurrentPrice = &p
		}
	}
	if lastUpdated.Valid {
		s.LastUpdated = &lastUpdated.Time
	}
}

func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
