package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

//goland:noinspection SqlWithoutWhere
var clearDatabaseStatements = []string{
	`DELETE FROM readings;`,
	`DELETE FROM commands;`,
}

func ClearDatabase(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear database tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range clearDatabaseStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear database tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear database tx: %w", err)
	}

	return nil
}

// PruneReadings keeps only the newest keep readings.
func PruneReadings(ctx context.Context, db *sql.DB, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM readings
		WHERE id NOT IN (
			SELECT id FROM readings ORDER BY received_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned readings: %w", err)
	}

	return n, nil
}
