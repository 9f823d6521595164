package rowbind

import (
	"context"
	"database/sql"
)

// SqlInterface is the query surface of *sql.DB, *sql.Conn and *sql.Tx used to read rows
type SqlInterface interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ SqlInterface = (*sql.DB)(nil)
	_ SqlInterface = (*sql.Tx)(nil)
	_ SqlInterface = (*sql.Conn)(nil)
)
