package postgres

import (
	"context"
	"database/sql"
)

// DBTX is the slice of *sqlx.DB / *sqlx.Tx the repositories rely on.
// Taking the interface instead of a concrete handle lets tests run every
// repository inside a rolled-back transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	// sqlx struct-scanning helpers
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}
