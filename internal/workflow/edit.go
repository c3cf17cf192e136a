package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/auth"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// Edit replaces a request's status and lines directly. This is the manual
// correction path: it does NOT run approval's stock checks or deductions, so
// callers editing an approved request must re-balance stock themselves via
// the inventory service.
func Edit(ctx context.Context, db *sql.DB, requestID int64, newStatus string, newLines []LineInput, actor auth.Principal) (*model.Request, error) {
	if !model.ValidStatus(newStatus) {
		return nil, store.Validationf("unknown status %q", newStatus)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	request, err := store.GetRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("request %d: %w", requestID, store.ErrNotFound)
	}

	if err := store.SetRequestStatus(ctx, tx, requestID, newStatus); err != nil {
		return nil, err
	}

	if newLines != nil {
		if err := store.DeleteRequestLines(ctx, tx, requestID); err != nil {
			return nil, err
		}
		for _, line := range newLines {
			if line.Qty <= 0 {
				return nil, store.Validationf("line quantity must be positive")
			}
			item, err := store.GetItem(ctx, tx, line.ItemID)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, fmt.Errorf("item %d: %w", line.ItemID, store.ErrNotFound)
			}
			if err := store.InsertRequestLine(ctx, tx, requestID, line.ItemID, line.Qty); err != nil {
				return nil, err
			}
		}
	}

	request, err = store.GetRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing edit: %w", err)
	}

	log.Warn().Int64("request_id", requestID).Str("status", newStatus).
		Str("actor", actor.Name).Msg("request edited without stock re-balance")
	return request, nil
}
