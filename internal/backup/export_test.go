package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/amensah/pantry/internal/db"
	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

func TestFlattenAndParseLines(t *testing.T) {
	lines := []model.RequestLine{
		{ItemName: "Rice", Unit: "kg", QtyRequested: 2.5},
		{ItemName: "Olive Oil (extra virgin)", Unit: "bottle", QtyRequested: 1},
	}

	flat := FlattenLines(lines)
	if flat != "Rice (kg) x 2.5; Olive Oil (extra virgin) (bottle) x 1" {
		t.Fatalf("unexpected summary %q", flat)
	}

	parsed := ParseLineSummary(flat)
	if len(parsed) != 2 {
		t.Fatalf("expected 2 parsed lines, got %+v", parsed)
	}
	if parsed[0].Name != "Rice" || parsed[0].Unit != "kg" || parsed[0].Qty != 2.5 {
		t.Errorf("unexpected first line %+v", parsed[0])
	}
	// The unit comes from the last parenthesised group, so a name with
	// parentheses survives intact.
	if parsed[1].Name != "Olive Oil (extra virgin)" || parsed[1].Unit != "bottle" {
		t.Errorf("unexpected second line %+v", parsed[1])
	}
}

func TestParseLineSummaryMalformed(t *testing.T) {
	parsed := ParseLineSummary("no quantity here; Rice (kg) x abc; ; Beans (can) x 3")
	if len(parsed) != 1 || parsed[0].Name != "Beans" || parsed[0].Qty != 3 {
		t.Errorf("expected only the valid part, got %+v", parsed)
	}

	if got := ParseLineSummary(""); got != nil {
		t.Errorf("expected nil for empty summary, got %+v", got)
	}
}

func TestWriteItemsCSV(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	cost := 1.25
	expiry := "2026-03-01"
	item, _ := store.CreateItem(ctx, database, "Rice", "kg", &cost, &expiry)
	store.SetItemQuantityTx(ctx, database, item.ID, 12.5)

	inactive, _ := store.CreateItem(ctx, database, "Old Oil", "bottle", nil, nil)
	store.SetItemActive(ctx, database, inactive.ID, false)

	var buf bytes.Buffer
	if err := WriteItemsCSV(ctx, database, &buf); err != nil {
		t.Fatalf("WriteItemsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "item_id,item_name,unit,qty_available,unit_cost,expiry_date,status" {
		t.Errorf("unexpected header %v", records[0])
	}

	// Sorted by name: Old Oil before Rice.
	if records[1][1] != "Old Oil" || records[1][6] != "Inactive" {
		t.Errorf("unexpected first row %v", records[1])
	}
	if records[2][3] != "12.5" || records[2][4] != "1.25" || records[2][5] != "2026-03-01" {
		t.Errorf("unexpected rice row %v", records[2])
	}
}

func TestWriteRequestsCSVFlattens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	rice, _ := store.CreateItem(ctx, database, "Rice", "kg", nil, nil)
	member, _ := store.CreateMember(ctx, database, "Ana", "555-0101", "ana@example.com")
	id, _ := store.CreateRequest(ctx, database, member.ID, "weekly")
	store.InsertRequestLine(ctx, database, id, rice.ID, 2)

	var buf bytes.Buffer
	if err := WriteRequestsCSV(ctx, database, &buf); err != nil {
		t.Fatalf("WriteRequestsCSV: %v", err)
	}

	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(records))
	}
	row := records[1]
	if row[1] != "PENDING" || row[3] != "Ana" || row[8] != "Rice (kg) x 2" {
		t.Errorf("unexpected request row %v", row)
	}
}

func TestWriteUploadsArchiveMissingDir(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUploadsArchive(&buf, "/nonexistent/uploads"); err != nil {
		t.Fatalf("missing dir should yield empty archive, got %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a valid empty zip, got no bytes")
	}
}
