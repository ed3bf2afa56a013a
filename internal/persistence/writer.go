package persistence

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultWriterCapacity = 256
	writeMaxAttempts      = 3
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue runs database writes one at a time off the event path.
type WriterQueue struct {
	logger *slog.Logger
	queue  chan writeCmd
	done   chan struct{}
	retry  time.Duration
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = defaultWriterCapacity
	}
	if logger == nil {
		logger = slog.Default().With("component", "persistence.writer")
	}

	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeCmd, capacity),
		done:   make(chan struct{}),
		retry:  300 * time.Millisecond,
	}
}

func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	select {
	case w.queue <- cmd:
	default:
		w.logger.Warn("db write queue full, dropping write", "cmd", name)
	}
}

// Start runs the queue until ctx is done. Writes still queued at that point
// get one attempt each before Wait returns.
func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			if ctx.Err() != nil {
				w.drain(context.WithoutCancel(ctx))

				return
			}
			select {
			case <-ctx.Done():
				w.drain(context.WithoutCancel(ctx))

				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

// Wait blocks until the queue stopped and drained.
func (w *WriterQueue) Wait() {
	<-w.done
}

func (w *WriterQueue) drain(ctx context.Context) {
	for {
		select {
		case cmd := <-w.queue:
			if err := cmd.fn(ctx); err != nil {
				w.logger.Error("db write failed during shutdown", "cmd", cmd.name, "error", err)
			}
		default:
			return
		}
	}
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writeMaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * w.retry):
		}
	}
}
