package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amensah/pantry/internal/model"
)

// CreateRequest inserts a pending request for a member.
func CreateRequest(ctx context.Context, q Querier, memberID int64, note string) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO requests (member_id, status, note) VALUES (?, ?, ?)`,
		memberID, model.StatusPending, note,
	)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	return result.LastInsertId()
}

// InsertRequestLine adds one item+quantity line to a request.
func InsertRequestLine(ctx context.Context, q Querier, requestID, itemID int64, qty float64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO request_lines (request_id, item_id, qty_requested) VALUES (?, ?, ?)`,
		requestID, itemID, qty,
	)
	if err != nil {
		return fmt.Errorf("inserting request line: %w", err)
	}
	return nil
}

// GetRequest returns a request with member details and lines, or nil if it
// does not exist.
func GetRequest(ctx context.Context, q Querier, id int64) (*model.Request, error) {
	r := &model.Request{}
	var decidedBy sql.NullString
	var decidedAt sql.NullTime
	err := q.QueryRowContext(ctx,
		`SELECT r.id, r.member_id, r.status, r.note, r.reject_reason, r.created_at, r.decided_at, r.decided_by,
		        m.name, m.phone, m.email
		 FROM requests r
		 JOIN members m ON m.id = r.member_id
		 WHERE r.id = ?`, id,
	).Scan(&r.ID, &r.MemberID, &r.Status, &r.Note, &r.RejectReason, &r.CreatedAt, &decidedAt, &decidedBy,
		&r.MemberName, &r.MemberPhone, &r.MemberEmail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	if decidedAt.Valid {
		r.DecidedAt = &decidedAt.Time
	}
	if decidedBy.Valid {
		r.DecidedBy = &decidedBy.String
	}

	lines, err := GetRequestLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	r.Lines = lines
	return r, nil
}

// RequestExists reports whether a request with the given id is present.
func RequestExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking request: %w", err)
	}
	return count > 0, nil
}

// GetRequestLines returns a request's lines with item details.
func GetRequestLines(ctx context.Context, q Querier, requestID int64) ([]model.RequestLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT rl.id, rl.request_id, rl.item_id, rl.qty_requested, i.name, i.unit
		 FROM request_lines rl
		 JOIN items i ON i.id = rl.item_id
		 WHERE rl.request_id = ?
		 ORDER BY i.name`, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting request lines: %w", err)
	}
	defer rows.Close()

	var lines []model.RequestLine
	for rows.Next() {
		var l model.RequestLine
		if err := rows.Scan(&l.ID, &l.RequestID, &l.ItemID, &l.QtyRequested, &l.ItemName, &l.Unit); err != nil {
			return nil, fmt.Errorf("scanning request line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListRequests returns requests with member details, without lines.
// Search matches member name, phone, email, or the request id.
func ListRequests(ctx context.Context, q Querier, status string, opts ListOptions) ([]model.Request, error) {
	query := `SELECT r.id, r.member_id, r.status, r.note, r.reject_reason, r.created_at, r.decided_at, r.decided_by,
	                 m.name, m.phone, m.email
	          FROM requests r
	          JOIN members m ON m.id = r.member_id
	          WHERE 1=1`
	var args []any

	if status != "" {
		query += ` AND r.status = ?`
		args = append(args, status)
	}
	if opts.Search != "" {
		query += ` AND (m.name LIKE ? OR m.phone LIKE ? OR m.email LIKE ? OR CAST(r.id AS TEXT) LIKE ?)`
		like := "%" + opts.Search + "%"
		args = append(args, like, like, like, like)
	}

	query += opts.orderClause(requestSortColumns, "r.id")

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		var r model.Request
		var decidedBy sql.NullString
		var decidedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.MemberID, &r.Status, &r.Note, &r.RejectReason, &r.CreatedAt,
			&decidedAt, &decidedBy, &r.MemberName, &r.MemberPhone, &r.MemberEmail); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		if decidedAt.Valid {
			r.DecidedAt = &decidedAt.Time
		}
		if decidedBy.Valid {
			r.DecidedBy = &decidedBy.String
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// SetRequestDecision records a terminal decision on a request.
func SetRequestDecision(ctx context.Context, q Querier, id int64, status, rejectReason, decidedBy string, decidedAt time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE requests SET status = ?, reject_reason = ?, decided_at = ?, decided_by = ? WHERE id = ?`,
		status, rejectReason, decidedAt, decidedBy, id,
	)
	if err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	return nil
}

// SetRequestStatus overwrites only the status column. This is the manual
// correction path; it performs no stock bookkeeping.
func SetRequestStatus(ctx context.Context, q Querier, id int64, status string) error {
	_, err := q.ExecContext(ctx, `UPDATE requests SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("setting request status: %w", err)
	}
	return nil
}

// DeleteRequestLines removes all lines of a request.
func DeleteRequestLines(ctx context.Context, q Querier, requestID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM request_lines WHERE request_id = ?`, requestID)
	if err != nil {
		return fmt.Errorf("deleting request lines: %w", err)
	}
	return nil
}

// InsertRequestRow inserts a request preserving explicit id, status and
// timestamps. Used by the import merge path.
func InsertRequestRow(ctx context.Context, q Querier, r *model.Request) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if r.ID > 0 {
		result, err = q.ExecContext(ctx,
			`INSERT INTO requests (id, member_id, status, note, reject_reason, created_at, decided_at, decided_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.MemberID, r.Status, r.Note, r.RejectReason, r.CreatedAt, r.DecidedAt, r.DecidedBy,
		)
	} else {
		result, err = q.ExecContext(ctx,
			`INSERT INTO requests (member_id, status, note, reject_reason, created_at, decided_at, decided_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.MemberID, r.Status, r.Note, r.RejectReason, r.CreatedAt, r.DecidedAt, r.DecidedBy,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("inserting request row: %w", err)
	}
	return result.LastInsertId()
}

// RequestStatusCounts returns the number of requests per status.
func RequestStatusCounts(ctx context.Context, q Querier) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning request count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
