package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amensah/pantry/internal/model"
)

// CreateMember inserts a new member row.
func CreateMember(ctx context.Context, q Querier, name, phone, email string) (*model.Member, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO members (name, phone, email) VALUES (?, ?, ?)`,
		name, phone, email,
	)
	if err != nil {
		return nil, fmt.Errorf("creating member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting member id: %w", err)
	}

	return GetMember(ctx, q, id)
}

// GetMember returns a member by ID, or nil if it does not exist.
func GetMember(ctx context.Context, q Querier, id int64) (*model.Member, error) {
	m := &model.Member{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, phone, email, created_at FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Phone, &m.Email, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return m, nil
}

// FindMember looks a member up by phone-or-email match. This is the soft
// identity resolution used on submission and import; it returns the oldest
// matching row, or nil when neither value matches.
func FindMember(ctx context.Context, q Querier, phone, email string) (*model.Member, error) {
	query := `SELECT id, name, phone, email, created_at FROM members WHERE 1=0`
	var args []any
	if phone != "" {
		query += ` OR phone = ?`
		args = append(args, phone)
	}
	if email != "" {
		query += ` OR email = ?`
		args = append(args, email)
	}
	query += ` ORDER BY id LIMIT 1`

	m := &model.Member{}
	err := q.QueryRowContext(ctx, query, args...).
		Scan(&m.ID, &m.Name, &m.Phone, &m.Email, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding member: %w", err)
	}
	return m, nil
}

// ListMembers returns all members, oldest first.
func ListMembers(ctx context.Context, q Querier) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, phone, email, created_at FROM members ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.Email, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DeleteMember removes a member and, via cascade, their requests.
func DeleteMember(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	return nil
}
