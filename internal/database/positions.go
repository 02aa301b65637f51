package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stockfolio/portfolio-tracker/internal/models"
)

const positionSelect = `SELECT id, user_id, stock_id, quantity, average_buy_price, created_at, updated_at FROM positions`

// GetPositionsByUser retrieves all positions held by a user
func (db *DB) GetPositionsByUser(userID int) ([]*models.Position, error) {
	rows, err := db.conn.Query(positionSelect+` WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.UserID, &p.StockID, &p.Quantity, &p.AverageBuyPrice, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// GetPosition retrieves one (user, stock) position
func (db *DB) GetPosition(userID, stockID int) (*models.Position, error) {
	return scanPosition(db.conn.QueryRow(positionSelect+` WHERE user_id = $1 AND stock_id = $2`, userID, stockID))
}

// GetPositionForUpdate retrieves one (user, stock) position within the unit
// of work, locking the row until commit.
func (t *Tx) GetPositionForUpdate(userID, stockID int) (*models.Position, error) {
	return scanPosition(t.tx.QueryRow(positionSelect+` WHERE user_id = $1 AND stock_id = $2 FOR UPDATE`, userID, stockID))
}

// CreatePosition inserts a new position within the unit of work
func (t *Tx) CreatePosition(p *models.Position) error {
	query := `
		INSERT INTO positions (user_id, stock_id, quantity, average_buy_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	err := t.tx.QueryRow(query, p.UserID, p.StockID, p.Quantity, p.AverageBuyPrice, now, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdatePosition writes a position's quantity and average buy price within the unit of work
func (t *Tx) UpdatePosition(p *models.Position) error {
	now := time.Now()
	result, err := t.tx.Exec(
		`UPDATE positions SET quantity = $2, average_buy_price = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Quantity, p.AverageBuyPrice, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("position %d: %w", p.ID, ErrNotFound)
	}
	p.UpdatedAt = now
	return nil
}

// DeletePosition removes a position within the unit of work.
// Called by the ledger when a position's quantity reaches zero.
func (t *Tx) DeletePosition(id int) error {
	result, err := t.tx.Exec(`DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("position %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanPosition(row *sql.Row) (*models.Position, error) {
	var p models.Position
	err := row.Scan(&p.ID, &p.UserID, &p.StockID, &p.Quantity, &p.AverageBuyPrice, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("position: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &p, nil
}
