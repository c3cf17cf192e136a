// Package backup serializes the full ledger to portable CSV/zip bundles and
// merges such bundles back into a store without duplicating records. It also
// orchestrates push/pull transfers between two instances.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// csvTime is the timestamp layout used in export rows.
const csvTime = "2006-01-02 15:04:05"

// Column headers for the tabular sections. Column order is fixed.
var (
	itemsHeader     = []string{"item_id", "item_name", "unit", "qty_available", "unit_cost", "expiry_date", "status"}
	requestsHeader  = []string{"request_id", "status", "created_at", "member_name", "phone", "email", "note", "reject_reason", "items"}
	movementsHeader = []string{"movement_id", "item_id", "movement_type", "qty", "note", "created_by", "created_at"}
	managersHeader  = []string{"manager_id", "username", "email", "password_hash", "is_active", "created_at"}
)

// Entry names inside a full backup archive.
const (
	EntryItems     = "items.csv"
	EntryRequests  = "requests.csv"
	EntryMovements = "stock_movements.csv"
	EntryManagers  = "managers.csv"
	EntryUploads   = "uploads.zip"
)

// WriteItemsCSV writes the items section.
func WriteItemsCSV(ctx context.Context, q store.Querier, w io.Writer) error {
	items, err := store.ListItems(ctx, q, store.ItemFilter{}, store.ListOptions{Sort: store.SortByName})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(itemsHeader); err != nil {
		return fmt.Errorf("writing items header: %w", err)
	}
	for _, item := range items {
		cost := ""
		if item.UnitCost != nil {
			cost = formatQty(*item.UnitCost)
		}
		expiry := ""
		if item.ExpiryDate != nil {
			expiry = *item.ExpiryDate
		}
		row := []string{
			strconv.FormatInt(item.ID, 10),
			item.Name,
			item.Unit,
			formatQty(item.QtyAvailable),
			cost,
			expiry,
			item.StatusLabel(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing item row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRequestsCSV writes the requests section with each request's lines
// flattened into a single summary column.
func WriteRequestsCSV(ctx context.Context, q store.Querier, w io.Writer) error {
	requests, err := store.ListRequests(ctx, q, "", store.ListOptions{Sort: store.SortByID})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(requestsHeader); err != nil {
		return fmt.Errorf("writing requests header: %w", err)
	}
	for _, r := range requests {
		lines, err := store.GetRequestLines(ctx, q, r.ID)
		if err != nil {
			return err
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Status,
			r.CreatedAt.UTC().Format(csvTime),
			r.MemberName,
			r.MemberPhone,
			r.MemberEmail,
			r.Note,
			r.RejectReason,
			FlattenLines(lines),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing request row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMovementsCSV writes the stock movements section.
func WriteMovementsCSV(ctx context.Context, q store.Querier, w io.Writer) error {
	movements, err := store.ListMovements(ctx, q, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(movementsHeader); err != nil {
		return fmt.Errorf("writing movements header: %w", err)
	}
	for _, m := range movements {
		row := []string{
			strconv.FormatInt(m.ID, 10),
			strconv.FormatInt(m.ItemID, 10),
			m.Type,
			formatQty(m.Qty),
			m.Note,
			m.CreatedBy,
			m.CreatedAt.UTC().Format(csvTime),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing movement row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteManagersCSV writes the manager accounts section.
func WriteManagersCSV(ctx context.Context, q store.Querier, w io.Writer) error {
	managers, err := store.ListManagers(ctx, q)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(managersHeader); err != nil {
		return fmt.Errorf("writing managers header: %w", err)
	}
	for _, m := range managers {
		active := "0"
		if m.IsActive {
			active = "1"
		}
		row := []string{
			strconv.FormatInt(m.ID, 10),
			m.Username,
			m.Email,
			m.PasswordHash,
			active,
			m.CreatedAt.UTC().Format(csvTime),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing manager row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUploadsArchive writes a zip of every stored image asset under an
// uploads/ directory prefix. A missing uploads directory yields an empty
// archive rather than an error.
func WriteUploadsArchive(w io.Writer, uploadsDir string) error {
	zw := zip.NewWriter(w)

	entries, err := os.ReadDir(uploadsDir)
	if err != nil && !os.IsNotExist(err) {
		zw.Close()
		return fmt.Errorf("reading uploads directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(uploadsDir, entry.Name()))
		if err != nil {
			zw.Close()
			return fmt.Errorf("reading upload %s: %w", entry.Name(), err)
		}
		f, err := zw.Create("uploads/" + entry.Name())
		if err != nil {
			zw.Close()
			return fmt.Errorf("adding upload %s: %w", entry.Name(), err)
		}
		if _, err := f.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("writing upload %s: %w", entry.Name(), err)
		}
	}

	return zw.Close()
}

// WriteFullBackup writes a zip containing the four CSV sections plus the
// uploads archive as named entries.
func WriteFullBackup(ctx context.Context, q store.Querier, uploadsDir string, w io.Writer) error {
	zw := zip.NewWriter(w)

	sections := []struct {
		name  string
		write func(io.Writer) error
	}{
		{EntryItems, func(w io.Writer) error { return WriteItemsCSV(ctx, q, w) }},
		{EntryRequests, func(w io.Writer) error { return WriteRequestsCSV(ctx, q, w) }},
		{EntryMovements, func(w io.Writer) error { return WriteMovementsCSV(ctx, q, w) }},
		{EntryManagers, func(w io.Writer) error { return WriteManagersCSV(ctx, q, w) }},
		{EntryUploads, func(w io.Writer) error { return WriteUploadsArchive(w, uploadsDir) }},
	}

	for _, s := range sections {
		f, err := zw.Create(s.name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("adding backup entry %s: %w", s.name, err)
		}
		if err := s.write(f); err != nil {
			zw.Close()
			return fmt.Errorf("writing backup entry %s: %w", s.name, err)
		}
	}

	return zw.Close()
}

// FlattenLines renders request lines as "Name (unit) x qty; ..." for export.
func FlattenLines(lines []model.RequestLine) string {
	var buf bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			buf.WriteString("; ")
		}
		fmt.Fprintf(&buf, "%s (%s) x %s", l.ItemName, l.Unit, formatQty(l.QtyRequested))
	}
	return buf.String()
}

// formatQty renders a quantity without a forced decimal tail.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseCSVTime parses an exported timestamp, accepting both the export
// layout and RFC 3339.
func parseCSVTime(s string) (time.Time, error) {
	if t, err := time.Parse(csvTime, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
