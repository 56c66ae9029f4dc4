package postgres

import (
	"context"
	"database/sql"
)

// dbExecutor is the subset of *sql.DB every repository in this package
// calls through. Satisfied by *sql.DB directly or by
// circuitbreaker.DBCircuitBreaker, so callers can wrap the connection in
// circuit-breaker protection without the repositories knowing about it.
type dbExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
