package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amensah/pantry/internal/model"
	"github.com/amensah/pantry/internal/store"
)

// SectionResult counts the outcome of merging one section.
type SectionResult struct {
	Section  string   `json:"section"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *SectionResult) rowError(line int, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %v", line, err))
}

// readSection parses a whole CSV section into memory and validates its
// header, so a broken container is rejected before any rows are written.
func readSection(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, &IntegrityError{Msg: "malformed CSV", Err: err}
	}
	if len(records) == 0 {
		return nil, &IntegrityError{Msg: "empty section"}
	}
	got := records[0]
	if len(got) != len(header) {
		return nil, &IntegrityError{Msg: fmt.Sprintf("unexpected header %v", got)}
	}
	for i := range header {
		if strings.TrimSpace(got[i]) != header[i] {
			return nil, &IntegrityError{Msg: fmt.Sprintf("unexpected header %v", got)}
		}
	}
	return records[1:], nil
}

// ImportItems merges an items section. Rows resolve three ways: an existing
// id updates in place, else a matching name updates that row, else the row is
// inserted (preserving an explicit id when one is given). Malformed rows are
// counted and skipped; the rest of the section still lands.
func ImportItems(ctx context.Context, db *sql.DB, r io.Reader) (*SectionResult, error) {
	rows, err := readSection(r, itemsHeader)
	if err != nil {
		return nil, err
	}

	result := &SectionResult{Section: "items"}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		line := i + 2
		if len(row) != len(itemsHeader) {
			result.rowError(line, fmt.Errorf("expected %d columns, got %d", len(itemsHeader), len(row)))
			continue
		}

		item, err := parseItemRow(row)
		if err != nil {
			result.rowError(line, err)
			continue
		}

		target, err := resolveItemTarget(ctx, tx, item)
		if err != nil {
			return nil, err
		}
		if target > 0 {
			if err := store.UpdateItemRow(ctx, tx, target, item); err != nil {
				return nil, err
			}
			result.Updated++
		} else {
			if _, err := store.InsertItemRow(ctx, tx, item); err != nil {
				return nil, err
			}
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing items import: %w", err)
	}
	logResult(result)
	return result, nil
}

// resolveItemTarget returns the id of the row to update, or 0 to insert.
func resolveItemTarget(ctx context.Context, q store.Querier, item *model.Item) (int64, error) {
	if item.ID > 0 {
		existing, err := store.GetItem(ctx, q, item.ID)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}
	byName, err := store.GetItemByName(ctx, q, item.Name)
	if err != nil {
		return 0, err
	}
	if byName != nil {
		return byName.ID, nil
	}
	return 0, nil
}

func parseItemRow(row []string) (*model.Item, error) {
	item := &model.Item{Name: strings.TrimSpace(row[1]), Unit: strings.TrimSpace(row[2])}
	if item.Name == "" {
		return nil, fmt.Errorf("missing item name")
	}
	if item.Unit == "" {
		item.Unit = "unit"
	}

	if row[0] != "" {
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad item_id %q", row[0])
		}
		item.ID = id
	}

	qty, err := strconv.ParseFloat(row[3], 64)
	if err != nil || qty < 0 {
		return nil, fmt.Errorf("bad qty_available %q", row[3])
	}
	item.QtyAvailable = qty

	if row[4] != "" {
		cost, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("bad unit_cost %q", row[4])
		}
		item.UnitCost = &cost
	}
	if row[5] != "" {
		expiry := row[5]
		item.ExpiryDate = &expiry
	}
	item.IsActive = !strings.EqualFold(row[6], "Inactive")
	return item, nil
}

// ImportManagers merges a managers section using the same three-way
// resolution as items, with username as the natural key.
func ImportManagers(ctx context.Context, db *sql.DB, r io.Reader) (*SectionResult, error) {
	rows, err := readSection(r, managersHeader)
	if err != nil {
		return nil, err
	}

	result := &SectionResult{Section: "managers"}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		line := i + 2
		if len(row) != len(managersHeader) {
			result.rowError(line, fmt.Errorf("expected %d columns, got %d", len(managersHeader), len(row)))
			continue
		}

		m, err := parseManagerRow(row)
		if err != nil {
			result.rowError(line, err)
			continue
		}

		var targetID int64
		if m.ID > 0 {
			exists, err := store.ManagerExists(ctx, tx, m.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				targetID = m.ID
			}
		}
		if targetID == 0 {
			byName, err := store.GetManagerByUsername(ctx, tx, m.Username)
			if err != nil {
				return nil, err
			}
			if byName != nil {
				targetID = byName.ID
			}
		}

		if targetID > 0 {
			if err := store.UpdateManagerRow(ctx, tx, targetID, m); err != nil {
				return nil, err
			}
			result.Updated++
		} else {
			if err := store.InsertManagerRow(ctx, tx, m); err != nil {
				return nil, err
			}
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing managers import: %w", err)
	}
	logResult(result)
	return result, nil
}

func parseManagerRow(row []string) (*model.Manager, error) {
	m := &model.Manager{
		Username:     strings.TrimSpace(row[1]),
		Email:        strings.TrimSpace(row[2]),
		PasswordHash: row[3],
	}
	if m.Username == "" {
		return nil, fmt.Errorf("missing username")
	}
	if row[0] != "" {
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad manager_id %q", row[0])
		}
		m.ID = id
	}
	m.IsActive = row[4] == "1" || strings.EqualFold(row[4], "true")
	if row[5] != "" {
		t, err := parseCSVTime(row[5])
		if err != nil {
			return nil, fmt.Errorf("bad created_at %q", row[5])
		}
		m.CreatedAt = t
	} else {
		m.CreatedAt = time.Now().UTC()
	}
	return m, nil
}

// ImportRequests merges a requests section. A request id that already exists
// is skipped outright, never overwritten, so a retried transfer cannot
// double-count. Members resolve by email-or-phone. The flattened line summary
// is re-parsed into request lines; a named item missing from the target gets
// a zero-quantity inactive placeholder so history is never dropped.
func ImportRequests(ctx context.Context, db *sql.DB, r io.Reader) (*SectionResult, error) {
	rows, err := readSection(r, requestsHeader)
	if err != nil {
		return nil, err
	}

	result := &SectionResult{Section: "requests"}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		line := i + 2
		if len(row) != len(requestsHeader) {
			result.rowError(line, fmt.Errorf("expected %d columns, got %d", len(requestsHeader), len(row)))
			continue
		}

		var requestID int64
		if row[0] != "" {
			requestID, err = strconv.ParseInt(row[0], 10, 64)
			if err != nil {
				result.rowError(line, fmt.Errorf("bad request_id %q", row[0]))
				continue
			}
		}
		if requestID > 0 {
			exists, err := store.RequestExists(ctx, tx, requestID)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Skipped++
				continue
			}
		}

		status := strings.ToUpper(strings.TrimSpace(row[1]))
		if !model.ValidStatus(status) {
			result.rowError(line, fmt.Errorf("bad status %q", row[1]))
			continue
		}

		createdAt := time.Now().UTC()
		if row[2] != "" {
			t, err := parseCSVTime(row[2])
			if err != nil {
				result.rowError(line, fmt.Errorf("bad created_at %q", row[2]))
				continue
			}
			createdAt = t
		}

		name, phone, email := strings.TrimSpace(row[3]), strings.TrimSpace(row[4]), strings.TrimSpace(row[5])
		member, err := store.FindMember(ctx, tx, phone, email)
		if err != nil {
			return nil, err
		}
		if member == nil {
			if name == "" {
				result.rowError(line, fmt.Errorf("missing member name"))
				continue
			}
			member, err = store.CreateMember(ctx, tx, name, phone, email)
			if err != nil {
				return nil, err
			}
		}

		req := &model.Request{
			ID:           requestID,
			MemberID:     member.ID,
			Status:       status,
			Note:         row[6],
			RejectReason: row[7],
			CreatedAt:    createdAt,
		}
		newID, err := store.InsertRequestRow(ctx, tx, req)
		if err != nil {
			return nil, err
		}

		for _, parsed := range ParseLineSummary(row[8]) {
			item, err := store.GetItemByName(ctx, tx, parsed.Name)
			if err != nil {
				return nil, err
			}
			if item == nil {
				item, err = placeholderItem(ctx, tx, parsed.Name, parsed.Unit)
				if err != nil {
					return nil, err
				}
			}
			if err := store.InsertRequestLine(ctx, tx, newID, item.ID, parsed.Qty); err != nil {
				return nil, err
			}
		}
		result.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing requests import: %w", err)
	}
	logResult(result)
	return result, nil
}

// placeholderItem creates a minimal inactive zero-quantity item so imported
// request history keeps its references.
func placeholderItem(ctx context.Context, q store.Querier, name, unit string) (*model.Item, error) {
	if unit == "" {
		unit = "unit"
	}
	id, err := store.InsertItemRow(ctx, q, &model.Item{Name: name, Unit: unit, IsActive: false})
	if err != nil {
		return nil, err
	}
	return store.GetItem(ctx, q, id)
}

// ImportMovements merges a movements section. Movements are append-only
// across transfers: a movement id that already exists is skipped entirely,
// never updated. Importing movements records history only; it does not touch
// item quantities, which travel in the items section.
func ImportMovements(ctx context.Context, db *sql.DB, r io.Reader) (*SectionResult, error) {
	rows, err := readSection(r, movementsHeader)
	if err != nil {
		return nil, err
	}

	result := &SectionResult{Section: "stock_movements"}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		line := i + 2
		if len(row) != len(movementsHeader) {
			result.rowError(line, fmt.Errorf("expected %d columns, got %d", len(movementsHeader), len(row)))
			continue
		}

		m, err := parseMovementRow(row)
		if err != nil {
			result.rowError(line, err)
			continue
		}

		exists, err := store.MovementExists(ctx, tx, m.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Skipped++
			continue
		}

		item, err := store.GetItem(ctx, tx, m.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			result.rowError(line, fmt.Errorf("unknown item %d", m.ItemID))
			continue
		}

		if err := store.InsertMovementRow(ctx, tx, m); err != nil {
			return nil, err
		}
		result.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing movements import: %w", err)
	}
	logResult(result)
	return result, nil
}

func parseMovementRow(row []string) (*model.StockMovement, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("bad movement_id %q", row[0])
	}
	itemID, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil || itemID <= 0 {
		return nil, fmt.Errorf("bad item_id %q", row[1])
	}
	movementType := strings.ToUpper(strings.TrimSpace(row[2]))
	if movementType != model.MovementIn && movementType != model.MovementOut {
		return nil, fmt.Errorf("bad movement_type %q", row[2])
	}
	qty, err := strconv.ParseFloat(row[3], 64)
	if err != nil || qty <= 0 {
		return nil, fmt.Errorf("bad qty %q", row[3])
	}
	createdAt := time.Now().UTC()
	if row[6] != "" {
		t, err := parseCSVTime(row[6])
		if err != nil {
			return nil, fmt.Errorf("bad created_at %q", row[6])
		}
		createdAt = t
	}
	return &model.StockMovement{
		ID:        id,
		ItemID:    itemID,
		Type:      movementType,
		Qty:       qty,
		Note:      row[4],
		CreatedBy: row[5],
		CreatedAt: createdAt,
	}, nil
}

// ParsedLine is one reconstructed line from a flattened request summary.
type ParsedLine struct {
	Name string
	Unit string
	Qty  float64
}

// ParseLineSummary reconstructs request lines from "Name (unit) x qty; ...".
// The format is best-effort: the quantity is taken after the last " x " and
// the unit from the last parenthesised group, so item names containing
// parentheses usually survive, but names containing "; " cannot. Parts that
// don't parse are dropped.
func ParseLineSummary(summary string) []ParsedLine {
	var lines []ParsedLine
	for _, part := range strings.Split(summary, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		xIdx := strings.LastIndex(part, " x ")
		if xIdx < 0 {
			continue
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(part[xIdx+3:]), 64)
		if err != nil || qty <= 0 {
			continue
		}

		head := strings.TrimSpace(part[:xIdx])
		name, unit := head, ""
		if strings.HasSuffix(head, ")") {
			if open := strings.LastIndex(head, " ("); open >= 0 {
				name = strings.TrimSpace(head[:open])
				unit = head[open+2 : len(head)-1]
			}
		}
		if name == "" {
			continue
		}
		lines = append(lines, ParsedLine{Name: name, Unit: unit, Qty: qty})
	}
	return lines
}

// Wipe deletes all ledger rows and stored images. This is the destructive
// mirror-mode pre-step; it is never part of ordinary incremental sync.
func Wipe(ctx context.Context, db *sql.DB, uploadsDir string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Children before parents, to satisfy foreign keys.
	tables := []string{"request_lines", "requests", "members", "stock_movements", "items", "managers"}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("wiping %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing wipe: %w", err)
	}

	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading uploads directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(uploadsDir, entry.Name())); err != nil {
			return fmt.Errorf("removing upload %s: %w", entry.Name(), err)
		}
	}

	log.Warn().Msg("ledger wiped for mirror import")
	return nil
}

// ExtractUploadsArchive restores image assets from an uploads archive into
// the uploads directory. Entry paths are flattened to their base name so a
// crafted archive cannot write outside the directory.
func ExtractUploadsArchive(data []byte, uploadsDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &IntegrityError{Msg: "malformed uploads archive", Err: err}
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading archive entry %s: %w", f.Name, err)
		}
		dest := filepath.Join(uploadsDir, filepath.Base(f.Name))
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return fmt.Errorf("writing upload %s: %w", dest, err)
		}
	}
	return nil
}

// ImportFullBackup restores a full backup archive. All four CSV sections
// must be present or the whole import is rejected before any writes. With
// mirror set, the local ledger and images are wiped first so the result is
// an exact copy of the source.
func ImportFullBackup(ctx context.Context, db *sql.DB, uploadsDir string, data []byte, mirror bool) ([]SectionResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &IntegrityError{Msg: "malformed backup archive", Err: err}
	}

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, &IntegrityError{Msg: "unreadable backup entry " + f.Name, Err: err}
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &IntegrityError{Msg: "unreadable backup entry " + f.Name, Err: err}
		}
		entries[f.Name] = content
	}

	for _, required := range []string{EntryItems, EntryRequests, EntryMovements, EntryManagers} {
		if _, ok := entries[required]; !ok {
			return nil, &IntegrityError{Msg: "missing required section " + required}
		}
	}

	if mirror {
		if err := Wipe(ctx, db, uploadsDir); err != nil {
			return nil, err
		}
	}

	// Items must land before requests (referenced by name) and movements
	// (referenced by id).
	var results []SectionResult
	steps := []struct {
		entry string
		merge func(io.Reader) (*SectionResult, error)
	}{
		{EntryItems, func(r io.Reader) (*SectionResult, error) { return ImportItems(ctx, db, r) }},
		{EntryRequests, func(r io.Reader) (*SectionResult, error) { return ImportRequests(ctx, db, r) }},
		{EntryMovements, func(r io.Reader) (*SectionResult, error) { return ImportMovements(ctx, db, r) }},
		{EntryManagers, func(r io.Reader) (*SectionResult, error) { return ImportManagers(ctx, db, r) }},
	}
	for _, step := range steps {
		res, err := step.merge(bytes.NewReader(entries[step.entry]))
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}

	if uploads, ok := entries[EntryUploads]; ok && len(uploads) > 0 {
		if err := ExtractUploadsArchive(uploads, uploadsDir); err != nil {
			return results, err
		}
	}

	return results, nil
}

func logResult(r *SectionResult) {
	log.Info().Str("section", r.Section).
		Int("inserted", r.Inserted).Int("updated", r.Updated).
		Int("skipped", r.Skipped).Int("row_errors", len(r.Errors)).
		Msg("section merged")
}
