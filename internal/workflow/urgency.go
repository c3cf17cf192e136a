package workflow

import (
	"context"
	"database/sql"
	"time"

	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// UrgentRequest is a pending request flagged for manager attention, with the
// line conditions that triggered it. Purely derived, never stored.
type UrgentRequest struct {
	Request model.Request `json:"request"`
	Reasons []string      `json:"reasons"`
}

// UrgentRequests classifies pending requests as urgent when any line
// references an inactive item, an insufficient-quantity item, a low-stock
// item, or an item expiring within the window. Thresholds are caller-supplied.
func UrgentRequests(ctx context.Context, db *sql.DB, lowThreshold float64, windowDays int, today time.Time) ([]UrgentRequest, error) {
	pending, err := store.ListRequests(ctx, db, model.StatusPending, store.ListOptions{Sort: store.SortByID})
	if err != nil {
		return nil, err
	}

	var urgent []UrgentRequest
	for _, r := range pending {
		lines, err := store.GetRequestLines(ctx, db, r.ID)
		if err != nil {
			return nil, err
		}

		var reasons []string
		seen := make(map[string]bool)
		add := func(reason string) {
			if !seen[reason] {
				seen[reason] = true
				reasons = append(reasons, reason)
			}
		}

		for _, line := range lines {
			item, err := store.GetItem(ctx, db, line.ItemID)
			if err != nil {
				return nil, err
			}
			if item == nil {
				continue
			}
			if line.QtyRequested > item.QtyAvailable {
				add("insufficient stock")
			}
			flags := model.ComputeFlags(item, lowThreshold, windowDays, today)
			if flags.Inactive {
				add("inactive item")
			}
			if flags.LowStock {
				add("low stock")
			}
			if flags.Expired || flags.ExpiringSoon {
				add("expiring item")
			}
		}

		if len(reasons) > 0 {
			r.Lines = lines
			urgent = append(urgent, UrgentRequest{Request: r, Reasons: reasons})
		}
	}
	return urgent, nil
}
