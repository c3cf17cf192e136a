package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amensah/pantry/internal/model"
)

// InsertMovement appends a stock movement. Movements are never updated or
// deleted afterwards.
func InsertMovement(ctx context.Context, q Querier, itemID int64, movementType string, qty float64, note, createdBy string) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO stock_movements (item_id, movement_type, qty, note, created_by)
		 VALUES (?, ?, ?, ?, ?)`,
		itemID, movementType, qty, note, createdBy,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting movement: %w", err)
	}
	return result.LastInsertId()
}

// MovementExists reports whether a movement with the given id is present.
func MovementExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_movements WHERE id = ?`, id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking movement: %w", err)
	}
	return count > 0, nil
}

// InsertMovementRow inserts a movement preserving its explicit id and
// timestamp. Used by the import merge path; rows with an existing id must be
// skipped by the caller beforehand.
func InsertMovementRow(ctx context.Context, q Querier, m *model.StockMovement) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO stock_movements (id, item_id, movement_type, qty, note, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ItemID, m.Type, m.Qty, m.Note, m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting movement row: %w", err)
	}
	return nil
}

// ListMovements returns movements, optionally filtered by item, newest first.
func ListMovements(ctx context.Context, q Querier, itemID int64) ([]model.StockMovement, error) {
	query := `SELECT sm.id, sm.item_id, sm.movement_type, sm.qty, sm.note, sm.created_by, sm.created_at,
	                 i.name AS item_name
	          FROM stock_movements sm
	          JOIN items i ON i.id = sm.item_id`
	var args []any

	if itemID > 0 {
		query += ` WHERE sm.item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY sm.created_at DESC, sm.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var movements []model.StockMovement
	for rows.Next() {
		var m model.StockMovement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Type, &m.Qty, &m.Note, &m.CreatedBy, &m.CreatedAt, &m.ItemName); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// MovementSum returns the signed sum of an item's movements: IN adds, OUT
// subtracts. The item's cached quantity must always equal this value.
func MovementSum(ctx context.Context, q Querier, itemID int64) (float64, error) {
	var sum sql.NullFloat64
	err := q.QueryRowContext(ctx,
		`SELECT SUM(CASE movement_type WHEN 'IN' THEN qty ELSE -qty END)
		 FROM stock_movements WHERE item_id = ?`, itemID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing movements: %w", err)
	}
	return sum.Float64, nil
}

// MovementTotals returns the total IN and OUT quantities moved since the
// given time, for activity reporting.
func MovementTotals(ctx context.Context, q Querier, since time.Time) (in, out float64, err error) {
	rows, err := q.QueryContext(ctx,
		`SELECT movement_type, COALESCE(SUM(qty), 0)
		 FROM stock_movements WHERE created_at >= ? GROUP BY movement_type`, since,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("summing movement totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movementType string
		var total float64
		if err := rows.Scan(&movementType, &total); err != nil {
			return 0, 0, fmt.Errorf("scanning movement total: %w", err)
		}
		switch movementType {
		case model.MovementIn:
			in = total
		case model.MovementOut:
			out = total
		}
	}
	return in, out, rows.Err()
}
