package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/skobkin/joylink/internal/domain"
)

type CommandRepo struct {
	db *sql.DB
}

func NewCommandRepo(db *sql.DB) *CommandRepo {
	return &CommandRepo{db: db}
}

func (r *CommandRepo) Insert(ctx context.Context, c domain.SentCommand) error {
	payload := c.Payload
	if payload == "" {
		raw, err := json.Marshal(c.Command)
		if err != nil {
			return fmt.Errorf("encode command payload: %w", err)
		}
		payload = string(raw)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO commands(payload, sent_at)
		VALUES(?, ?)
	`, payload, toUnixMillis(c.SentAt)); err != nil {
		return fmt.Errorf("insert command: %w", err)
	}

	return nil
}

// ListRecent returns up to limit sent commands, newest first. The command is
// rebuilt from the stored payload.
func (r *CommandRepo) ListRecent(ctx context.Context, limit int) ([]domain.SentCommand, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload, sent_at
		FROM commands
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SentCommand, 0, limit)
	for rows.Next() {
		var (
			c      domain.SentCommand
			sentMs int64
		)
		if err := rows.Scan(&c.Payload, &sentMs); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if err := json.Unmarshal([]byte(c.Payload), &c.Command); err != nil {
			return nil, fmt.Errorf("decode command payload: %w", err)
		}
		c.SentAt = fromUnixMillis(sentMs)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}

	return out, nil
}
