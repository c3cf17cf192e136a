package store

import (
	"context"
	"fmt"
	"time"

	"github.com/amensah/pantry/internal/model"
)

// InventorySummary is the headline count block of the reports page.
type InventorySummary struct {
	TotalItems    int     `json:"total_items"`
	ActiveItems   int     `json:"active_items"`
	InactiveItems int     `json:"inactive_items"`
	InStockItems  int     `json:"in_stock_items"`
	OutStockItems int     `json:"out_of_stock_items"`
	TotalQty      float64 `json:"total_qty"`
}

// GetInventorySummary computes the item counts and total quantity on hand.
func GetInventorySummary(ctx context.Context, q Querier) (*InventorySummary, error) {
	s := &InventorySummary{}
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_active), 0),
		        COALESCE(SUM(CASE WHEN qty_available > 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(qty_available), 0)
		 FROM items`,
	).Scan(&s.TotalItems, &s.ActiveItems, &s.InStockItems, &s.TotalQty)
	if err != nil {
		return nil, fmt.Errorf("summarising inventory: %w", err)
	}
	s.InactiveItems = s.TotalItems - s.ActiveItems
	s.OutStockItems = s.TotalItems - s.InStockItems
	return s, nil
}

// ListLowStockItems returns active items with some stock left at or below the
// threshold, lowest first.
func ListLowStockItems(ctx context.Context, q Querier, threshold float64) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE is_active = 1 AND qty_available > 0 AND qty_available <= ?
		 ORDER BY qty_available ASC, name`, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("listing low stock items: %w", err)
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

// ListExpiringItems returns items whose expiry date falls on or before the
// given cutoff, soonest first. Items already past expiry are included.
func ListExpiringItems(ctx context.Context, q Querier, cutoff time.Time) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE expiry_date IS NOT NULL AND expiry_date != '' AND date(expiry_date) <= date(?)
		 ORDER BY date(expiry_date), name`, cutoff.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("listing expiring items: %w", err)
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

// FulfillmentGap is a pending request line that cannot currently be satisfied.
type FulfillmentGap struct {
	RequestID    int64   `json:"request_id"`
	ItemID       int64   `json:"item_id"`
	ItemName     string  `json:"item_name"`
	Unit         string  `json:"unit"`
	QtyRequested float64 `json:"qty_requested"`
	QtyAvailable float64 `json:"qty_available"`
	Inactive     bool    `json:"inactive"`
}

// ListFulfillmentGaps returns pending request lines referencing inactive
// items or quantities beyond current stock, newest request first.
func ListFulfillmentGaps(ctx context.Context, q Querier) ([]FulfillmentGap, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.id, i.id, i.name, i.unit, rl.qty_requested, i.qty_available, i.is_active
		 FROM requests r
		 JOIN request_lines rl ON rl.request_id = r.id
		 JOIN items i ON i.id = rl.item_id
		 WHERE r.status = 'PENDING'
		   AND (i.is_active != 1 OR rl.qty_requested > i.qty_available)
		 ORDER BY r.id DESC, i.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing fulfillment gaps: %w", err)
	}
	defer rows.Close()

	var gaps []FulfillmentGap
	for rows.Next() {
		var g FulfillmentGap
		var active bool
		if err := rows.Scan(&g.RequestID, &g.ItemID, &g.ItemName, &g.Unit, &g.QtyRequested, &g.QtyAvailable, &active); err != nil {
			return nil, fmt.Errorf("scanning fulfillment gap: %w", err)
		}
		g.Inactive = !active
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// TopRequestedItem is one row of the all-time demand ranking.
type TopRequestedItem struct {
	ItemName       string  `json:"item_name"`
	Unit           string  `json:"unit"`
	TotalRequested float64 `json:"total_requested"`
}

// ListTopRequestedItems returns the most requested items of all time.
func ListTopRequestedItems(ctx context.Context, q Querier, limit int) ([]TopRequestedItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT i.name, i.unit, SUM(rl.qty_requested) AS total_requested
		 FROM request_lines rl
		 JOIN items i ON i.id = rl.item_id
		 GROUP BY i.id
		 ORDER BY total_requested DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing top requested items: %w", err)
	}
	defer rows.Close()

	var top []TopRequestedItem
	for rows.Next() {
		var t TopRequestedItem
		if err := rows.Scan(&t.ItemName, &t.Unit, &t.TotalRequested); err != nil {
			return nil, fmt.Errorf("scanning top requested item: %w", err)
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

// CountRequestsSince returns the number of requests created since the given time.
func CountRequestsSince(ctx context.Context, q Querier, since time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE created_at >= ?`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recent requests: %w", err)
	}
	return count, nil
}
