package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/auth"
	"github.com/amensah/pantry/internal/inventory"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// Decisions.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// LineFailure describes one request line that blocks an approval.
type LineFailure struct {
	ItemID       int64   `json:"item_id"`
	ItemName     string  `json:"item_name"`
	QtyRequested float64 `json:"qty_requested"`
	QtyAvailable float64 `json:"qty_available"`
	Inactive     bool    `json:"inactive"`
}

func (f LineFailure) String() string {
	if f.Inactive {
		return fmt.Sprintf("%s: item inactive", f.ItemName)
	}
	return fmt.Sprintf("%s: requested %.2f, available %.2f", f.ItemName, f.QtyRequested, f.QtyAvailable)
}

// FulfillmentError reports every line that prevented an approval. The
// decision it aborted had no effect on the ledger.
type FulfillmentError struct {
	RequestID int64
	Lines     []LineFailure
}

func (e *FulfillmentError) Error() string {
	parts := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		parts[i] = l.String()
	}
	return fmt.Sprintf("cannot fulfill request %d: %s", e.RequestID, strings.Join(parts, "; "))
}

// DecideResult reports the outcome of a decision.
type DecideResult struct {
	Request        *model.Request `json:"request"`
	AlreadyDecided bool           `json:"already_decided"`
}

// Decide applies a terminal decision to a pending request. Deciding a request
// that is no longer pending is a no-op returning its current state, so
// retried decisions are harmless. Approval re-validates every line against
// current item state and deducts stock only when all lines pass; the check
// and the deductions share one transaction.
func Decide(ctx context.Context, db *sql.DB, requestID int64, decision string, actor auth.Principal, reason string) (*DecideResult, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, store.Validationf("decision must be %s or %s", DecisionApprove, DecisionReject)
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

	if request.Status != model.StatusPending {
		return &DecideResult{Request: request, AlreadyDecided: true}, nil
	}

	now := time.Now().UTC()

	if decision == DecisionReject {
		if err := store.SetRequestDecision(ctx, tx, requestID, model.StatusRejected, strings.TrimSpace(reason), actor.Name, now); err != nil {
			return nil, err
		}
	} else {
		if err := approve(ctx, tx, request, actor, now); err != nil {
			return nil, err
		}
	}

	request, err = store.GetRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing decision: %w", err)
	}

	log.Info().Int64("request_id", requestID).Str("decision", decision).
		Str("actor", actor.Name).Msg("request decided")
	return &DecideResult{Request: request}, nil
}

// approve validates all lines, then deducts each one. Runs inside the
// decision transaction; any error rolls the whole approval back.
func approve(ctx context.Context, tx *sql.Tx, request *model.Request, actor auth.Principal, now time.Time) error {
	items := make(map[int64]*model.Item, len(request.Lines))
	var failures []LineFailure

	for _, line := range request.Lines {
		item, err := store.GetItem(ctx, tx, line.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			failures = append(failures, LineFailure{
				ItemID: line.ItemID, ItemName: line.ItemName, QtyRequested: line.QtyRequested, Inactive: true,
			})
			continue
		}
		items[line.ItemID] = item
		switch {
		case !item.IsActive:
			failures = append(failures, LineFailure{
				ItemID: item.ID, ItemName: item.Name, QtyRequested: line.QtyRequested,
				QtyAvailable: item.QtyAvailable, Inactive: true,
			})
		case line.QtyRequested > item.QtyAvailable:
			failures = append(failures, LineFailure{
				ItemID: item.ID, ItemName: item.Name, QtyRequested: line.QtyRequested,
				QtyAvailable: item.QtyAvailable,
			})
		}
	}

	if len(failures) > 0 {
		return &FulfillmentError{RequestID: request.ID, Lines: failures}
	}

	note := fmt.Sprintf("Approved request #%d", request.ID)
	for _, line := range request.Lines {
		if err := inventory.Deduct(ctx, tx, items[line.ItemID], line.QtyRequested, note, actor); err != nil {
			return err
		}
	}

	return store.SetRequestDecision(ctx, tx, request.ID, model.StatusApproved, "", actor.Name, now)
}

// BulkResult partitions the outcome of a bulk decision by request id.
type BulkResult struct {
	Approved []int64          `json:"approved"`
	Rejected []int64          `json:"rejected"`
	Skipped  []int64          `json:"skipped"`
	Failed   map[int64]string `json:"failed"`
}

// BulkDecide applies the same decision to each request independently, in
// ascending id order so results are reproducible. A failure on one request
// does not block the others; each id lands in exactly one outcome bucket.
func BulkDecide(ctx context.Context, db *sql.DB, requestIDs []int64, decision string, actor auth.Principal, reason string) (*BulkResult, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, store.Validationf("decision must be %s or %s", DecisionApprove, DecisionReject)
	}

	ids := make([]int64, len(requestIDs))
	copy(ids, requestIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := &BulkResult{Failed: make(map[int64]string)}
	for _, id := range ids {
		res, err := Decide(ctx, db, id, decision, actor, reason)
		if err != nil {
			var fe *FulfillmentError
			if errors.As(err, &fe) || errors.Is(err, store.ErrNotFound) {
				result.Failed[id] = err.Error()
				continue
			}
			return nil, fmt.Errorf("deciding request %d: %w", id, err)
		}
		switch {
		case res.AlreadyDecided:
			result.Skipped = append(result.Skipped, id)
		case res.Request.Status == model.StatusApproved:
			result.Approved = append(result.Approved, id)
		default:
			result.Rejected = append(result.Rejected, id)
		}
	}
	return result, nil
}
