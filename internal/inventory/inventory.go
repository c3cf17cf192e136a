// Package inventory mutates items and their stock movement ledger. Every
// quantity change flows through a movement insert and a quantity update in
// the same transaction, so readers never observe one without the other.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/auth"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// CreateItemParams describes a new item.
type CreateItemParams struct {
	Name       string
	Unit       string
	InitialQty float64
	UnitCost   *float64
	ExpiryDate *string // YYYY-MM-DD
}

// CreateItem creates an item and, when an initial quantity is given, records
// the opening IN movement in the same transaction.
func CreateItem(ctx context.Context, db *sql.DB, p CreateItemParams, actor auth.Principal) (*model.Item, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.TrimSpace(p.Unit)
	if p.Name == "" || p.Unit == "" {
		return nil, store.Validationf("item name and unit are required")
	}
	if p.InitialQty < 0 {
		return nil, store.Validationf("initial quantity must not be negative")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.CreateItem(ctx, tx, p.Name, p.Unit, p.UnitCost, p.ExpiryDate)
	if err != nil {
		return nil, err
	}

	if p.InitialQty > 0 {
		if err := applyMovement(ctx, tx, item, p.InitialQty, "Initial stock", actor); err != nil {
			return nil, err
		}
		item.QtyAvailable = p.InitialQty
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item creation: %w", err)
	}

	log.Info().Int64("item_id", item.ID).Str("name", item.Name).
		Float64("initial_qty", p.InitialQty).Str("actor", actor.Name).
		Msg("item created")
	return item, nil
}

// AdjustQuantity changes an item's quantity by delta. Positive deltas record
// an IN movement, negative ones an OUT movement. A negative delta larger than
// the current quantity fails with InsufficientStockError and leaves no trace.
func AdjustQuantity(ctx context.Context, db *sql.DB, itemID int64, delta float64, note string, actor auth.Principal) (*model.Item, error) {
	if delta == 0 {
		return nil, store.Validationf("delta must be non-zero")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, store.ErrNotFound)
	}

	if err := applyMovement(ctx, tx, item, delta, note, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing adjustment: %w", err)
	}

	item.QtyAvailable += delta
	return item, nil
}

// Intake records a positive stock addition, the manager intake form path.
func Intake(ctx context.Context, db *sql.DB, itemID int64, qty float64, actor auth.Principal) (*model.Item, error) {
	if qty <= 0 {
		return nil, store.Validationf("intake quantity must be positive")
	}
	return AdjustQuantity(ctx, db, itemID, qty, "Intake", actor)
}

// SetQuantity reconciles an item to an absolute quantity, recording one
// synthetic movement for the difference. Setting the current quantity is a
// no-op with no movement.
func SetQuantity(ctx context.Context, db *sql.DB, itemID int64, newQty float64, actor auth.Principal) (*model.Item, error) {
	if newQty < 0 {
		return nil, store.Validationf("quantity must not be negative")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, store.ErrNotFound)
	}

	delta := newQty - item.QtyAvailable
	if delta != 0 {
		if err := applyMovement(ctx, tx, item, delta, "Manual adjustment", actor); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing manual adjustment: %w", err)
	}

	item.QtyAvailable = newQty
	return item, nil
}

// applyMovement inserts the signed movement and rewrites the item quantity.
// Must run inside the caller's transaction with item freshly read from it.
func applyMovement(ctx context.Context, tx *sql.Tx, item *model.Item, delta float64, note string, actor auth.Principal) error {
	movementType := model.MovementIn
	if delta < 0 {
		movementType = model.MovementOut
		if -delta > item.QtyAvailable {
			return &store.InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.QtyAvailable,
				Requested: -delta,
			}
		}
	}

	if _, err := store.InsertMovement(ctx, tx, item.ID, movementType, math.Abs(delta), note, actor.Name); err != nil {
		return err
	}
	return store.SetItemQuantityTx(ctx, tx, item.ID, item.QtyAvailable+delta)
}

// Deduct removes qty from an item as part of an approval, using the caller's
// transaction so the whole decision commits or rolls back together.
func Deduct(ctx context.Context, tx *sql.Tx, item *model.Item, qty float64, note string, actor auth.Principal) error {
	if qty <= 0 {
		return store.Validationf("deduction quantity must be positive")
	}
	return applyMovement(ctx, tx, item, -qty, note, actor)
}
