package store

import (
	"context"
	"testing"

	"github.com/amensah/pantry/internal/db"
)

func TestFindMemberByPhoneOrEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana, err := CreateMember(ctx, database, "Ana", "555-0101", "ana@example.com")
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	byPhone, _ := FindMember(ctx, database, "555-0101", "")
	if byPhone == nil || byPhone.ID != ana.ID {
		t.Errorf("expected match by phone, got %+v", byPhone)
	}

	byEmail, _ := FindMember(ctx, database, "", "ana@example.com")
	if byEmail == nil || byEmail.ID != ana.ID {
		t.Errorf("expected match by email, got %+v", byEmail)
	}

	none, _ := FindMember(ctx, database, "555-9999", "nobody@example.com")
	if none != nil {
		t.Errorf("expected no match, got %+v", none)
	}
}

func TestFindMemberBlankIdentifiers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// A member stored with empty contact fields must not match every blank
	// lookup that follows.
	CreateMember(ctx, database, "Ghost", "", "")

	got, err := FindMember(ctx, database, "", "")
	if err != nil {
		t.Fatalf("FindMember: %v", err)
	}
	if got != nil {
		t.Errorf("blank identifiers must not match, got %+v", got)
	}
}

func TestListMembers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateMember(ctx, database, "Bo", "555-0202", "")
	CreateMember(ctx, database, "Ana", "555-0101", "")

	members, err := ListMembers(ctx, database)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}
