package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/joylink/internal/domain"
)

type ReadingRepo struct {
	db *sql.DB
}

func NewReadingRepo(db *sql.DB) *ReadingRepo {
	return &ReadingRepo{db: db}
}

func (r *ReadingRepo) Insert(ctx context.Context, reading domain.JoystickReading) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO readings(x, y, pressed, received_at)
		VALUES(?, ?, ?, ?)
	`, reading.X, reading.Y, boolToInt(reading.Pressed), toUnixMillis(reading.ReceivedAt))
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	return nil
}

// ListRecent returns up to limit readings, newest first.
func (r *ReadingRepo) ListRecent(ctx context.Context, limit int) ([]domain.JoystickReading, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT x, y, pressed, received_at
		FROM readings
		ORDER BY received_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.JoystickReading, 0, limit)
	for rows.Next() {
		var (
			reading    domain.JoystickReading
			pressed    int
			receivedMs int64
		)
		if err := rows.Scan(&reading.X, &reading.Y, &pressed, &receivedMs); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		reading.Pressed = pressed != 0
		reading.ReceivedAt = fromUnixMillis(receivedMs)
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	return out, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}

	return 0
}
