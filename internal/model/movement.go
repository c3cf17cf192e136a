package model

import "time"

// StockMovement is an append-only ledger entry. Movements are never mutated
// or deleted by normal operation; they are the source of truth for quantity
// history.
type StockMovement struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Type      string    `json:"movement_type"`
	Qty       float64   `json:"qty"`
	Note      string    `json:"note,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// Joined field (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// Movement directions.
const (
	MovementIn  = "IN"
	MovementOut = "OUT"
)
