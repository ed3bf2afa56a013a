package domain

import "context"

type ReadingRepository interface {
	Insert(ctx context.Context, r JoystickReading) error
	ListRecent(ctx context.Context, limit int) ([]JoystickReading, error)
}

type CommandRepository interface {
	Insert(ctx context.Context, c SentCommand) error
	ListRecent(ctx context.Context, limit int) ([]SentCommand, error)
}
