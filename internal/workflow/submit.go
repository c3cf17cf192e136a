// Package workflow drives requests from submission to decision. Decisions and
// their stock effects run as single transactions against the ledger, so two
// approvals racing on the same item can never jointly overdraw it.
package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// LineInput is one requested item+quantity pair as submitted.
type LineInput struct {
	ItemID int64   `json:"item_id"`
	Qty    float64 `json:"qty"`
}

// SubmitParams carries a member's submission.
type SubmitParams struct {
	Name  string
	Phone string
	Email string
	Note  string
	Lines []LineInput
}

// Submit records a new pending request. The member is resolved softly by
// phone-or-email match, creating a new row only when neither matches. Lines
// with zero quantity are dropped; lines referencing inactive or out-of-stock
// items are dropped too, since approval re-validates against current stock
// anyway. If nothing usable remains the whole submission rolls back, leaving
// no member or request rows behind.
func Submit(ctx context.Context, db *sql.DB, p SubmitParams) (*model.Request, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" || p.Phone == "" {
		return nil, store.Validationf("name and phone are required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	member, err := store.FindMember(ctx, tx, p.Phone, p.Email)
	if err != nil {
		return nil, err
	}
	if member == nil {
		member, err = store.CreateMember(ctx, tx, p.Name, p.Phone, p.Email)
		if err != nil {
			return nil, err
		}
	}

	requestID, err := store.CreateRequest(ctx, tx, member.ID, strings.TrimSpace(p.Note))
	if err != nil {
		return nil, err
	}

	added := 0
	for _, line := range p.Lines {
		if line.Qty <= 0 {
			continue
		}
		item, err := store.GetItem(ctx, tx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil || !item.IsActive || item.QtyAvailable <= 0 {
			continue
		}
		if err := store.InsertRequestLine(ctx, tx, requestID, line.ItemID, line.Qty); err != nil {
			return nil, err
		}
		added++
	}

	if added == 0 {
		// Rolling back discards the request and any member row created
		// above, so failed submissions leave no orphan identities.
		return nil, store.Validationf("at least one item with a positive quantity is required")
	}

	request, err := store.GetRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing submission: %w", err)
	}

	log.Info().Int64("request_id", request.ID).Int64("member_id", member.ID).
		Int("lines", added).Msg("request submitted")
	return request, nil
}
