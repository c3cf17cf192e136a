package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amensah/pantry/internal/model"
)

const itemColumns = `id, name, unit, qty_available, unit_cost, expiry_date, is_active, image_path, created_at`

// CreateItem inserts a new item row. Names are globally unique across active
// and inactive items; a collision returns ErrConflict.
func CreateItem(ctx context.Context, q Querier, name, unit string, unitCost *float64, expiry *string) (*model.Item, error) {
	existing, err := GetItemByName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("item %q: %w", name, ErrConflict)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO items (name, unit, unit_cost, expiry_date) VALUES (?, ?, ?, ?)`,
		name, unit, unitCost, expiry,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemByName returns an item by its unique name, or nil if it does not exist.
func GetItemByName(ctx context.Context, q Querier, name string) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE name = ?`, name)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item by name: %w", err)
	}
	return item, nil
}

// ItemFilter narrows ListItems beyond the generic ListOptions.
type ItemFilter struct {
	ActiveOnly  bool
	InStockOnly bool
}

// ListItems returns items matching the filter, ordered per opts.
// Search matches item name or unit.
func ListItems(ctx context.Context, q Querier, filter ItemFilter, opts ListOptions) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	if filter.InStockOnly {
		query += ` AND qty_available > 0`
	}
	if opts.Search != "" {
		query += ` AND (name LIKE ? OR unit LIKE ?)`
		like := "%" + opts.Search + "%"
		args = append(args, like, like)
	}

	query += opts.orderClause(itemSortColumns, "name")

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItemMeta updates an item's mutable metadata. A rename that collides
// with another item returns ErrConflict. Quantity is not touched here; it only
// changes together with a stock movement.
func UpdateItemMeta(ctx context.Context, q Querier, id int64, name, unit string, unitCost *float64, expiry *string, active bool) error {
	other, err := GetItemByName(ctx, q, name)
	if err != nil {
		return err
	}
	if other != nil && other.ID != id {
		return fmt.Errorf("item %q: %w", name, ErrConflict)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, unit = ?, unit_cost = ?, expiry_date = ?, is_active = ? WHERE id = ?`,
		name, unit, unitCost, expiry, active, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetItemActive flips only the active flag.
func SetItemActive(ctx context.Context, q Querier, id int64, active bool) error {
	res, err := q.ExecContext(ctx, `UPDATE items SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("setting item active flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetItemImagePath records where the item's stored image lives.
func SetItemImagePath(ctx context.Context, q Querier, id int64, path string) error {
	res, err := q.ExecContext(ctx, `UPDATE items SET image_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetItemQuantityTx rewrites the cached quantity. Only the inventory service
// calls this, inside the same transaction as the movement insert.
func SetItemQuantityTx(ctx context.Context, q Querier, id int64, qty float64) error {
	_, err := q.ExecContext(ctx, `UPDATE items SET qty_available = ? WHERE id = ?`, qty, id)
	if err != nil {
		return fmt.Errorf("updating item quantity: %w", err)
	}
	return nil
}

// DeleteItem removes an item and, via cascade, its movements and request lines.
func DeleteItem(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// InsertItemRow inserts an item preserving an explicit id when one is given.
// Used by the import merge path.
func InsertItemRow(ctx context.Context, q Querier, item *model.Item) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if item.ID > 0 {
		result, err = q.ExecContext(ctx,
			`INSERT INTO items (id, name, unit, qty_available, unit_cost, expiry_date, is_active, image_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Name, item.Unit, item.QtyAvailable, item.UnitCost, item.ExpiryDate, item.IsActive, nullIfEmpty(item.ImagePath),
		)
	} else {
		result, err = q.ExecContext(ctx,
			`INSERT INTO items (name, unit, qty_available, unit_cost, expiry_date, is_active, image_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.Name, item.Unit, item.QtyAvailable, item.UnitCost, item.ExpiryDate, item.IsActive, nullIfEmpty(item.ImagePath),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("inserting item row: %w", err)
	}
	return result.LastInsertId()
}

// UpdateItemRow overwrites an existing item from an imported row, quantity
// included. Unlike UpdateItemMeta this is the reconciliation path and trusts
// the incoming snapshot.
func UpdateItemRow(ctx context.Context, q Querier, id int64, item *model.Item) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, unit = ?, qty_available = ?, unit_cost = ?, expiry_date = ?, is_active = ?
		 WHERE id = ?`,
		item.Name, item.Unit, item.QtyAvailable, item.UnitCost, item.ExpiryDate, item.IsActive, id,
	)
	if err != nil {
		return fmt.Errorf("updating item row: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var unitCost sql.NullFloat64
	var expiry, imagePath sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.QtyAvailable,
		&unitCost, &expiry, &item.IsActive, &imagePath, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if unitCost.Valid {
		item.UnitCost = &unitCost.Float64
	}
	if expiry.Valid && expiry.String != "" {
		item.ExpiryDate = &expiry.String
	}
	item.ImagePath = imagePath.String
	return item, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
