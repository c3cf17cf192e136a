package workflow

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amensah/pantry/internal/auth"
	"github.com/amensah/pantry/internal/db"
	"github.com/amensah/pantry/internal/inventory"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

var actor = auth.Principal{ManagerID: 1, Name: "admin"}

func seedItem(t *testing.T, database *sql.DB, name string, qty float64) *model.Item {
	t.Helper()
	item, err := inventory.CreateItem(context.Background(), database,
		inventory.CreateItemParams{Name: name, Unit: "kg", InitialQty: qty}, actor)
	if err != nil {
		t.Fatalf("seeding item %s: %v", name, err)
	}
	return item
}

func TestSubmitCreatesMemberAndRequest(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)

	req, err := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101", Email: "ana@example.com", Note: "weekly",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if req.Status != model.StatusPending {
		t.Errorf("expected PENDING, got %q", req.Status)
	}
	if len(req.Lines) != 1 || req.Lines[0].QtyRequested != 2 {
		t.Errorf("unexpected lines %+v", req.Lines)
	}

	// Same phone resolves to the same member, even with a different name.
	req2, err := Submit(ctx, database, SubmitParams{
		Name: "Ana Maria", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if req2.MemberID != req.MemberID {
		t.Errorf("expected member reuse, got %d and %d", req.MemberID, req2.MemberID)
	}

	members, _ := store.ListMembers(ctx, database)
	if len(members) != 1 {
		t.Errorf("expected 1 member, got %d", len(members))
	}
}

func TestSubmitDropsUnusableLines(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)
	empty := seedItem(t, database, "Salt", 0)
	inactive := seedItem(t, database, "Old Oil", 5)
	store.SetItemActive(ctx, database, inactive.ID, false)

	req, err := Submit(ctx, database, SubmitParams{
		Name: "Bo", Phone: "555-0202",
		Lines: []LineInput{
			{ItemID: rice.ID, Qty: 2},
			{ItemID: rice.ID, Qty: 0},
			{ItemID: empty.ID, Qty: 1},
			{ItemID: inactive.ID, Qty: 1},
			{ItemID: 9999, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(req.Lines) != 1 || req.Lines[0].ItemID != rice.ID {
		t.Errorf("expected only the rice line to survive, got %+v", req.Lines)
	}
}

func TestSubmitAllLinesDroppedLeavesNothing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	empty := seedItem(t, database, "Salt", 0)

	_, err := Submit(ctx, database, SubmitParams{
		Name: "Cal", Phone: "555-0303",
		Lines: []LineInput{{ItemID: empty.ID, Qty: 1}},
	})
	var ve *store.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// The rolled-back submission must leave no member behind.
	members, _ := store.ListMembers(ctx, database)
	if len(members) != 0 {
		t.Errorf("expected no members after failed submission, got %d", len(members))
	}
	requests, _ := store.ListRequests(ctx, database, "", store.ListOptions{})
	if len(requests) != 0 {
		t.Errorf("expected no requests, got %d", len(requests))
	}
}

func TestSubmitRequiresNameAndPhone(t *testing.T) {
	database := db.NewTestDB(t)

	var ve *store.ValidationError
	_, err := Submit(context.Background(), database, SubmitParams{Name: "Ana"})
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error for missing phone, got %v", err)
	}
}

func TestDecideApproveDeductsStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)
	beans := seedItem(t, database, "Beans", 5)

	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}, {ItemID: beans.ID, Qty: 5}},
	})

	result, err := Decide(ctx, database, req.ID, DecisionApprove, actor, "")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.AlreadyDecided {
		t.Error("fresh decision should not report already decided")
	}
	if result.Request.Status != model.StatusApproved {
		t.Errorf("expected APPROVED, got %q", result.Request.Status)
	}
	if result.Request.DecidedBy == nil || *result.Request.DecidedBy != "admin" {
		t.Errorf("expected decided_by admin, got %+v", result.Request.DecidedBy)
	}

	gotRice, _ := store.GetItem(ctx, database, rice.ID)
	gotBeans, _ := store.GetItem(ctx, database, beans.ID)
	if gotRice.QtyAvailable != 4 || gotBeans.QtyAvailable != 0 {
		t.Errorf("expected 4 and 0 remaining, got %v and %v", gotRice.QtyAvailable, gotBeans.QtyAvailable)
	}

	// Each deduction is an OUT movement referencing the request.
	movements, _ := store.ListMovements(ctx, database, rice.ID)
	if len(movements) != 2 || movements[0].Type != model.MovementOut {
		t.Fatalf("expected an OUT movement, got %+v", movements)
	}
	if movements[0].Note == "" {
		t.Error("expected approval movement to carry a note")
	}
}

func TestDecideApproveInsufficientStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)
	beans := seedItem(t, database, "Beans", 5)

	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}, {ItemID: beans.ID, Qty: 5}},
	})

	// Another approval drains rice first.
	other, _ := Submit(ctx, database, SubmitParams{
		Name: "Bo", Phone: "555-0202",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}},
	})
	if _, err := Decide(ctx, database, other.ID, DecisionApprove, actor, ""); err != nil {
		t.Fatalf("draining approval: %v", err)
	}

	_, err := Decide(ctx, database, req.ID, DecisionApprove, actor, "")
	var fe *FulfillmentError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FulfillmentError, got %v", err)
	}
	if len(fe.Lines) != 1 || fe.Lines[0].ItemID != rice.ID {
		t.Errorf("expected the rice line to fail, got %+v", fe.Lines)
	}
	if fe.Lines[0].QtyRequested != 6 || fe.Lines[0].QtyAvailable != 4 {
		t.Errorf("unexpected failure detail %+v", fe.Lines[0])
	}

	// The failed approval must not partially deduct: beans untouched,
	// request still pending.
	gotBeans, _ := store.GetItem(ctx, database, beans.ID)
	if gotBeans.QtyAvailable != 5 {
		t.Errorf("expected beans untouched at 5, got %v", gotBeans.QtyAvailable)
	}
	current, _ := store.GetRequest(ctx, database, req.ID)
	if current.Status != model.StatusPending {
		t.Errorf("expected request still pending, got %q", current.Status)
	}
}

func TestDecideCollectsAllFailures(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 2)
	oil := seedItem(t, database, "Oil", 1)

	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 5}, {ItemID: oil.ID, Qty: 3}},
	})

	_, err := Decide(ctx, database, req.ID, DecisionApprove, actor, "")
	var fe *FulfillmentError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FulfillmentError, got %v", err)
	}
	if len(fe.Lines) != 2 {
		t.Errorf("expected both failing lines reported, got %+v", fe.Lines)
	}
}

func TestDecideRejectKeepsStockAndReason(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)
	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}},
	})

	result, err := Decide(ctx, database, req.ID, DecisionReject, actor, "come back friday")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Request.Status != model.StatusRejected || result.Request.RejectReason != "come back friday" {
		t.Errorf("unexpected request %+v", result.Request)
	}

	got, _ := store.GetItem(ctx, database, rice.ID)
	if got.QtyAvailable != 10 {
		t.Errorf("rejection must not touch stock, got %v", got.QtyAvailable)
	}
}

func TestDecideIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)
	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}},
	})

	Decide(ctx, database, req.ID, DecisionApprove, actor, "")

	// Retrying, even with the opposite decision, is a no-op.
	result, err := Decide(ctx, database, req.ID, DecisionReject, actor, "changed my mind")
	if err != nil {
		t.Fatalf("repeat Decide: %v", err)
	}
	if !result.AlreadyDecided {
		t.Error("expected already-decided result")
	}
	if result.Request.Status != model.StatusApproved {
		t.Errorf("status must stay APPROVED, got %q", result.Request.Status)
	}

	got, _ := store.GetItem(ctx, database, rice.ID)
	if got.QtyAvailable != 4 {
		t.Errorf("stock must not move twice, got %v", got.QtyAvailable)
	}
}

func TestDecideValidation(t *testing.T) {
	database := db.NewTestDB(t)

	var ve *store.ValidationError
	if _, err := Decide(context.Background(), database, 1, "MAYBE", actor, ""); !errors.As(err, &ve) {
		t.Errorf("expected validation error for bad decision, got %v", err)
	}
	if _, err := Decide(context.Background(), database, 9999, DecisionApprove, actor, ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkDecide(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)

	// Two requests for 6 each: only the first can be approved.
	first, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}},
	})
	second, _ := Submit(ctx, database, SubmitParams{
		Name: "Bo", Phone: "555-0202",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 6}},
	})

	// One already decided, one missing.
	decided, _ := Submit(ctx, database, SubmitParams{
		Name: "Cal", Phone: "555-0303",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 1}},
	})
	Decide(ctx, database, decided.ID, DecisionReject, actor, "")

	result, err := BulkDecide(ctx, database,
		[]int64{second.ID, first.ID, decided.ID, 9999}, DecisionApprove, actor, "")
	if err != nil {
		t.Fatalf("BulkDecide: %v", err)
	}

	if len(result.Approved) != 1 || result.Approved[0] != first.ID {
		t.Errorf("expected only the lower id approved, got %v", result.Approved)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != decided.ID {
		t.Errorf("expected decided request skipped, got %v", result.Skipped)
	}
	if _, ok := result.Failed[second.ID]; !ok {
		t.Errorf("expected second request in failed bucket, got %v", result.Failed)
	}
	if _, ok := result.Failed[9999]; !ok {
		t.Errorf("expected missing request in failed bucket, got %v", result.Failed)
	}

	got, _ := store.GetItem(ctx, database, rice.ID)
	if got.QtyAvailable != 4 {
		t.Errorf("expected 4 remaining after one approval, got %v", got.QtyAvailable)
	}
}

func TestEditBypassesStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 10)
	beans := seedItem(t, database, "Beans", 5)

	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 2}},
	})

	edited, err := Edit(ctx, database, req.ID, model.StatusApproved,
		[]LineInput{{ItemID: beans.ID, Qty: 3}}, actor)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Status != model.StatusApproved {
		t.Errorf("expected APPROVED, got %q", edited.Status)
	}
	if len(edited.Lines) != 1 || edited.Lines[0].ItemID != beans.ID {
		t.Errorf("expected replaced lines, got %+v", edited.Lines)
	}

	// No stock was touched either way.
	gotRice, _ := store.GetItem(ctx, database, rice.ID)
	gotBeans, _ := store.GetItem(ctx, database, beans.ID)
	if gotRice.QtyAvailable != 10 || gotBeans.QtyAvailable != 5 {
		t.Errorf("edit must not move stock, got %v and %v", gotRice.QtyAvailable, gotBeans.QtyAvailable)
	}
}

func TestUrgentRequests(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice := seedItem(t, database, "Rice", 3)
	pasta := seedItem(t, database, "Pasta", 50)

	req, _ := Submit(ctx, database, SubmitParams{
		Name: "Ana", Phone: "555-0101",
		Lines: []LineInput{{ItemID: rice.ID, Qty: 5}},
	})
	Submit(ctx, database, SubmitParams{
		Name: "Bo", Phone: "555-0202",
		Lines: []LineInput{{ItemID: pasta.ID, Qty: 1}},
	})

	urgent, err := UrgentRequests(ctx, database, 5, 14, time.Now())
	if err != nil {
		t.Fatalf("UrgentRequests: %v", err)
	}
	if len(urgent) != 1 || urgent[0].Request.ID != req.ID {
		t.Fatalf("expected only Ana's request urgent, got %+v", urgent)
	}
	if len(urgent[0].Reasons) == 0 {
		t.Error("expected at least one reason")
	}
}

func TestDecideConcurrentApprovalsNeverOverdraw(t *testing.T) {
	// File-backed database so both goroutines contend on real storage under
	// WAL instead of a per-connection memory database.
	database, err := db.Open(filepath.Join(t.TempDir(), "pantry.sqlite3"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	ctx := context.Background()
	rice := seedItem(t, database, "Rice", 10)

	var ids [2]int64
	for i := range ids {
		req, err := Submit(ctx, database, SubmitParams{
			Name: "Ana", Phone: "555-0101",
			Lines: []LineInput{{ItemID: rice.ID, Qty: 6}},
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids[i] = req.ID
	}

	// Both requests fit individually but not together. Racing the approvals
	// must deduct stock for exactly one of them.
	errs := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := Decide(ctx, database, id, DecisionApprove, actor, "")
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var failed int
	for err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one approval to fail, got %d failures", failed)
	}

	item, _ := store.GetItem(ctx, database, rice.ID)
	if item.QtyAvailable < 0 {
		t.Fatalf("quantity went negative: %v", item.QtyAvailable)
	}
	if item.QtyAvailable != 4 {
		t.Errorf("expected 4 remaining after one approval, got %v", item.QtyAvailable)
	}
	sum, _ := store.MovementSum(ctx, database, rice.ID)
	if sum != item.QtyAvailable {
		t.Errorf("movement sum %v does not match quantity %v", sum, item.QtyAvailable)
	}
}
