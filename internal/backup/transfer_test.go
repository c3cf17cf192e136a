package backup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amensah/pantry/internal/db"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

func TestCheckTarget(t *testing.T) {
	if err := NewClient("http://remote:8080", "tok").CheckTarget("local:8080"); err != nil {
		t.Errorf("distinct hosts should pass: %v", err)
	}

	err := NewClient("http://local:8080", "tok").CheckTarget("local:8080")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError for same host, got %v", err)
	}

	if err := NewClient("ftp://remote", "tok").CheckTarget(""); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestCheckTargetLoopbackAgainstListenAddr(t *testing.T) {
	// Listen addresses usually have no host part; a loopback remote on the
	// same port still points at this instance.
	for _, remote := range []string{
		"http://localhost:8080",
		"http://127.0.0.1:8080",
		"http://[::1]:8080",
	} {
		err := NewClient(remote, "tok").CheckTarget(":8080")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Errorf("%s vs :8080: expected TransportError, got %v", remote, err)
		}
	}

	if err := NewClient("http://localhost:9090", "tok").CheckTarget(":8080"); err != nil {
		t.Errorf("different port should pass: %v", err)
	}
	if err := NewClient("http://pantry.example.org:8080", "tok").CheckTarget(":8080"); err != nil {
		t.Errorf("non-loopback host should pass: %v", err)
	}
}

func TestCheckTargetRequestHost(t *testing.T) {
	err := NewClient("http://pantry.example.org:8080", "tok").
		CheckTarget("pantry.example.org:8080", ":8080")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError for remote matching the request host, got %v", err)
	}
}

func TestPushSendsSectionsInOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice, _ := store.CreateItem(ctx, database, "Rice", "kg", nil, nil)
	store.InsertMovement(ctx, database, rice.ID, model.MovementIn, 5, "Initial stock", "admin")
	store.SetItemQuantityTx(ctx, database, rice.ID, 5)

	var received []string
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Sync-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		section := strings.TrimPrefix(r.URL.Path, "/api/sync/import/")
		received = append(received, section)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payload, _ := io.ReadAll(file)
		file.Close()
		if section == "items" && !strings.Contains(string(payload), "Rice") {
			t.Errorf("items payload missing Rice: %q", payload)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer remote.Close()

	client := NewClient(remote.URL, "secret")
	statuses := client.Push(ctx, database, t.TempDir())

	if len(statuses) != 5 {
		t.Fatalf("expected 5 section statuses, got %+v", statuses)
	}
	for _, s := range statuses {
		if !s.OK {
			t.Errorf("section %s failed: %s", s.Section, s.Error)
		}
	}

	want := []string{"items", "requests", "movements", "managers", "uploads"}
	if strings.Join(received, ",") != strings.Join(want, ",") {
		t.Errorf("expected sections in order %v, got %v", want, received)
	}
}

func TestPushItemsFailureAbortsRemainder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	var calls int
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer remote.Close()

	client := NewClient(remote.URL, "secret")
	statuses := client.Push(ctx, database, t.TempDir())

	if calls != 1 {
		t.Errorf("expected push to stop after items, remote saw %d calls", calls)
	}
	if len(statuses) != 1 || statuses[0].Section != "items" || statuses[0].OK {
		t.Errorf("unexpected statuses %+v", statuses)
	}
	if !strings.Contains(statuses[0].Error, "boom") {
		t.Errorf("expected remote body in error, got %q", statuses[0].Error)
	}
}

func TestPushRejectedToken(t *testing.T) {
	database := db.NewTestDB(t)

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer remote.Close()

	statuses := NewClient(remote.URL, "wrong").Push(context.Background(), database, t.TempDir())
	if len(statuses) != 1 || statuses[0].OK {
		t.Errorf("expected aborted push, got %+v", statuses)
	}
}

func TestPullMergesRemoteSections(t *testing.T) {
	// The remote is a second instance whose data we pull.
	source := db.NewTestDB(t)
	ctx := context.Background()

	rice, _ := store.CreateItem(ctx, source, "Rice", "kg", nil, nil)
	store.InsertMovement(ctx, source, rice.ID, model.MovementIn, 5, "Initial stock", "admin")
	store.SetItemQuantityTx(ctx, source, rice.ID, 5)
	ana, _ := store.CreateMember(ctx, source, "Ana", "555-0101", "")
	reqID, _ := store.CreateRequest(ctx, source, ana.ID, "")
	store.InsertRequestLine(ctx, source, reqID, rice.ID, 2)
	store.CreateManager(ctx, source, "admin", "", "hash")

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		section := strings.TrimPrefix(r.URL.Path, "/api/sync/export/")
		var err error
		switch section {
		case "items":
			err = WriteItemsCSV(r.Context(), source, w)
		case "requests":
			err = WriteRequestsCSV(r.Context(), source, w)
		case "movements":
			err = WriteMovementsCSV(r.Context(), source, w)
		case "managers":
			err = WriteManagersCSV(r.Context(), source, w)
		case "uploads":
			err = WriteUploadsArchive(w, t.TempDir())
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer remote.Close()

	target := db.NewTestDB(t)
	statuses := NewClient(remote.URL, "secret").Pull(ctx, target, t.TempDir())

	for _, s := range statuses {
		if !s.OK {
			t.Fatalf("section %s failed: %s", s.Section, s.Error)
		}
	}

	gotRice, _ := store.GetItemByName(ctx, target, "Rice")
	if gotRice == nil || gotRice.QtyAvailable != 5 {
		t.Errorf("expected rice pulled, got %+v", gotRice)
	}
	gotReq, _ := store.GetRequest(ctx, target, reqID)
	if gotReq == nil || gotReq.MemberName != "Ana" {
		t.Errorf("expected request pulled, got %+v", gotReq)
	}
	movements, _ := store.ListMovements(ctx, target, gotRice.ID)
	if len(movements) != 1 {
		t.Errorf("expected movement pulled, got %d", len(movements))
	}
}
