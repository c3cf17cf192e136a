package store

import (
	"context"
	"database/sql"
)

// Querier is satisfied by *sql.DB and *sql.Tx, so store functions can run
// either standalone or inside a caller-owned transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
