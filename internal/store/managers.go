package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amensah/pantry/internal/model"
)

// CreateManager creates a manager account. Usernames are unique.
func CreateManager(ctx context.Context, q Querier, username, email, passwordHash string) (*model.Manager, error) {
	existing, err := GetManagerByUsername(ctx, q, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("manager %q: %w", username, ErrConflict)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO managers (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("creating manager: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting manager id: %w", err)
	}

	return GetManager(ctx, q, id)
}

// GetManager returns a manager by ID, or nil if it does not exist.
func GetManager(ctx context.Context, q Querier, id int64) (*model.Manager, error) {
	m := &model.Manager{}
	err := q.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_active, created_at
		 FROM managers WHERE id = ?`, id,
	).Scan(&m.ID, &m.Username, &m.Email, &m.PasswordHash, &m.IsActive, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting manager: %w", err)
	}
	return m, nil
}

// GetManagerByUsername returns a manager by username, or nil if it does not exist.
func GetManagerByUsername(ctx context.Context, q Querier, username string) (*model.Manager, error) {
	m := &model.Manager{}
	err := q.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, is_active, created_at
		 FROM managers WHERE username = ?`, username,
	).Scan(&m.ID, &m.Username, &m.Email, &m.PasswordHash, &m.IsActive, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting manager by username: %w", err)
	}
	return m, nil
}

// ListManagers returns all manager accounts.
func ListManagers(ctx context.Context, q Querier) ([]model.Manager, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, username, email, password_hash, is_active, created_at
		 FROM managers ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing managers: %w", err)
	}
	defer rows.Close()

	var managers []model.Manager
	for rows.Next() {
		var m model.Manager
		if err := rows.Scan(&m.ID, &m.Username, &m.Email, &m.PasswordHash, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning manager: %w", err)
		}
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

// UpdateManagerPassword updates a manager's password hash.
func UpdateManagerPassword(ctx context.Context, q Querier, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE managers SET password_hash = ? WHERE id = ?`, passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating manager password: %w", err)
	}
	return nil
}

// InsertManagerRow inserts a manager preserving an explicit id when one is
// given. Used by the import merge path.
func InsertManagerRow(ctx context.Context, q Querier, m *model.Manager) error {
	var err error
	if m.ID > 0 {
		_, err = q.ExecContext(ctx,
			`INSERT INTO managers (id, username, email, password_hash, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.Username, m.Email, m.PasswordHash, m.IsActive, m.CreatedAt,
		)
	} else {
		_, err = q.ExecContext(ctx,
			`INSERT INTO managers (username, email, password_hash, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			m.Username, m.Email, m.PasswordHash, m.IsActive, m.CreatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("inserting manager row: %w", err)
	}
	return nil
}

// UpdateManagerRow overwrites an existing manager from an imported row.
func UpdateManagerRow(ctx context.Context, q Querier, id int64, m *model.Manager) error {
	_, err := q.ExecContext(ctx,
		`UPDATE managers SET username = ?, email = ?, password_hash = ?, is_active = ? WHERE id = ?`,
		m.Username, m.Email, m.PasswordHash, m.IsActive, id,
	)
	if err != nil {
		return fmt.Errorf("updating manager row: %w", err)
	}
	return nil
}

// ManagerExists reports whether a manager with the given id is present.
func ManagerExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM managers WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking manager: %w", err)
	}
	return count > 0, nil
}
