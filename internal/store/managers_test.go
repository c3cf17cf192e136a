package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amensah/pantry/internal/db"
	"github.com/amensah/pantry/internal/model"
)

func TestCreateAndGetManager(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	m, err := CreateManager(ctx, database, "admin", "admin@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateManager: %v", err)
	}
	if !m.IsActive {
		t.Error("new managers should be active")
	}

	got, _ := GetManagerByUsername(ctx, database, "admin")
	if got == nil || got.ID != m.ID {
		t.Errorf("expected lookup by username, got %+v", got)
	}

	_, err = CreateManager(ctx, database, "admin", "", "hash2")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate username, got %v", err)
	}
}

func TestUpdateManagerPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	m, _ := CreateManager(ctx, database, "admin", "", "old")
	if err := UpdateManagerPassword(ctx, database, m.ID, "new"); err != nil {
		t.Fatalf("UpdateManagerPassword: %v", err)
	}

	got, _ := GetManager(ctx, database, m.ID)
	if got.PasswordHash != "new" {
		t.Errorf("expected password hash replaced, got %q", got.PasswordHash)
	}
}

func TestManagerRowUpsert(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	created := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	err := InsertManagerRow(ctx, database, &model.Manager{
		ID: 5, Username: "masha", Email: "m@example.com", PasswordHash: "h", IsActive: true, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("InsertManagerRow: %v", err)
	}

	exists, _ := ManagerExists(ctx, database, 5)
	if !exists {
		t.Fatal("expected manager 5 to exist")
	}

	err = UpdateManagerRow(ctx, database, 5, &model.Manager{
		Username: "masha", Email: "masha@example.com", PasswordHash: "h2", IsActive: false,
	})
	if err != nil {
		t.Fatalf("UpdateManagerRow: %v", err)
	}

	got, _ := GetManager(ctx, database, 5)
	if got.Email != "masha@example.com" || got.IsActive {
		t.Errorf("unexpected manager after update %+v", got)
	}
}

func TestTokenRevocation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("fresh token should not be revoked")
	}

	if err := RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	revoked, _ = IsTokenRevoked(ctx, database, "jti-1")
	if !revoked {
		t.Error("expected token to be revoked")
	}
}

func TestGetJWTSecretStable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if first == "" {
		t.Fatal("expected generated secret")
	}

	second, _ := GetJWTSecret(ctx, database)
	if first != second {
		t.Error("secret must be stable across calls")
	}
}
