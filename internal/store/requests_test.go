package store

import (
	"context"
	"testing"
	"time"

	"github.com/amensah/pantry/internal/db"
	"github.com/amensah/pantry/internal/model"
)

func TestCreateAndGetRequest(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, _ := CreateMember(ctx, database, "Ana", "555-0101", "ana@example.com")
	rice, _ := CreateItem(ctx, database, "Rice", "kg", nil, nil)

	id, err := CreateRequest(ctx, database, member.ID, "weekly pickup")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := InsertRequestLine(ctx, database, id, rice.ID, 2); err != nil {
		t.Fatalf("InsertRequestLine: %v", err)
	}

	req, err := GetRequest(ctx, database, id)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if req.Status != model.StatusPending {
		t.Errorf("expected PENDING, got %q", req.Status)
	}
	if req.MemberName != "Ana" || req.MemberPhone != "555-0101" {
		t.Errorf("expected member fields joined, got %+v", req)
	}
	if len(req.Lines) != 1 || req.Lines[0].ItemName != "Rice" || req.Lines[0].QtyRequested != 2 {
		t.Errorf("unexpected lines %+v", req.Lines)
	}
}

func TestListRequestsByStatusAndSearch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana, _ := CreateMember(ctx, database, "Ana", "555-0101", "")
	bo, _ := CreateMember(ctx, database, "Bo", "555-0202", "bo@example.com")

	r1, _ := CreateRequest(ctx, database, ana.ID, "")
	CreateRequest(ctx, database, bo.ID, "")

	SetRequestDecision(ctx, database, r1, model.StatusRejected, "out of stock", "admin", time.Now().UTC())

	pending, err := ListRequests(ctx, database, model.StatusPending, ListOptions{})
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(pending) != 1 || pending[0].MemberName != "Bo" {
		t.Errorf("expected only Bo pending, got %+v", pending)
	}

	all, _ := ListRequests(ctx, database, "", ListOptions{})
	if len(all) != 2 {
		t.Errorf("expected 2 requests, got %d", len(all))
	}

	found, _ := ListRequests(ctx, database, "", ListOptions{Search: "bo@example"})
	if len(found) != 1 || found[0].MemberName != "Bo" {
		t.Errorf("expected search by email to find Bo, got %+v", found)
	}
}

func TestSetRequestDecision(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, _ := CreateMember(ctx, database, "Ana", "555-0101", "")
	id, _ := CreateRequest(ctx, database, member.ID, "")

	decidedAt := time.Now().UTC()
	if err := SetRequestDecision(ctx, database, id, model.StatusRejected, "no stock", "admin", decidedAt); err != nil {
		t.Fatalf("SetRequestDecision: %v", err)
	}

	req, _ := GetRequest(ctx, database, id)
	if req.Status != model.StatusRejected || req.RejectReason != "no stock" {
		t.Errorf("unexpected request after decision %+v", req)
	}
	if req.DecidedBy == nil || *req.DecidedBy != "admin" {
		t.Errorf("expected decided_by admin, got %+v", req.DecidedBy)
	}
}

func TestInsertRequestRowPreservesID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, _ := CreateMember(ctx, database, "Ana", "555-0101", "")
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := InsertRequestRow(ctx, database, &model.Request{
		ID: 77, MemberID: member.ID, Status: model.StatusApproved, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("InsertRequestRow: %v", err)
	}
	if id != 77 {
		t.Errorf("expected id 77, got %d", id)
	}

	exists, _ := RequestExists(ctx, database, 77)
	if !exists {
		t.Error("expected request 77 to exist")
	}

	got, _ := GetRequest(ctx, database, 77)
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at preserved, got %v", got.CreatedAt)
	}
}

func TestRequestStatusCounts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member, _ := CreateMember(ctx, database, "Ana", "555-0101", "")
	CreateRequest(ctx, database, member.ID, "")
	r2, _ := CreateRequest(ctx, database, member.ID, "")
	SetRequestDecision(ctx, database, r2, model.StatusApproved, "", "admin", time.Now().UTC())

	counts, err := RequestStatusCounts(ctx, database)
	if err != nil {
		t.Fatalf("RequestStatusCounts: %v", err)
	}
	if counts[model.StatusPending] != 1 || counts[model.StatusApproved] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}
