package domain

import (
	"context"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/connectors"
)

// WriteQueue serializes persistence writes from async domain events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartPersistenceProjection queues a write for every reading and sent command.
// After ctx is done it still queues events published before that, then closes
// the returned channel. Stop queue only after that channel is closed.
func StartPersistenceProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, readingRepo ReadingRepository, commandRepo CommandRepository) <-chan struct{} {
	readingsDone := bus.Consume(ctx, b, connectors.TopicReading, func(r JoystickReading) {
		queue.Enqueue("insert_reading", func(writeCtx context.Context) error {
			return readingRepo.Insert(writeCtx, r)
		})
	})

	commandsDone := bus.Consume(ctx, b, connectors.TopicCommandSent, func(c SentCommand) {
		c.Command = c.Command.Clone()
		queue.Enqueue("insert_command", func(writeCtx context.Context) error {
			return commandRepo.Insert(writeCtx, c)
		})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-readingsDone
		<-commandsDone
	}()

	return done
}
