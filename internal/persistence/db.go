package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Readings arrive at the device rate, so the journal is tuned for many small
// writes through a single connection.
var openPragmas = []struct {
	name string
	stmt string
}{
	{name: "wal mode", stmt: `PRAGMA journal_mode = WAL;`},
	{name: "synchronous mode", stmt: `PRAGMA synchronous = NORMAL;`},
	{name: "busy timeout", stmt: `PRAGMA busy_timeout = 5000;`},
}

// Open opens the telemetry database at path and migrates it to the latest schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, p := range openPragmas {
		if _, err := db.ExecContext(ctx, p.stmt); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("set %s: %w", p.name, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}
