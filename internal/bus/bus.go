package bus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/cskr/pubsub"
)

const defaultCapacity = 128

type Subscription chan any

type MessageBus interface {
	Publish(topic string, msg any)
	Subscribe(topic string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger

	// mu guards closed; pubsub commands block forever once it shuts down.
	mu     sync.RWMutex
	closed bool
}

// New creates a bus whose subscriptions buffer up to capacity messages.
func New(logger *slog.Logger, capacity int) *PubSubBus {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = slog.Default().With("component", "bus")
	}

	return &PubSubBus{
		ps:     pubsub.New(capacity),
		logger: logger,
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

// Subscribe returns a buffered channel for topic. On a closed bus the channel
// is already closed.
func (b *PubSubBus) Subscribe(topic string) Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		ch := make(Subscription)
		close(ch)

		return ch
	}
	ch := b.ps.Sub(topic)
	b.logger.Debug("subscribe", "topic", topic)

	return ch
}

// Unsubscribe detaches ch and closes it once every message already published
// to it is buffered. It must not be called from the goroutine reading ch.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")

		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

// Close closes every subscription. Later calls are no-ops.
func (b *PubSubBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

// Consume delivers every message of type T published on topic to fn until ctx
// is done or the bus shuts down. Messages of other types are dropped.
// It subscribes before returning, so nothing published afterwards is missed.
// When ctx is done, messages published before that are still delivered. The
// returned channel is closed after the last fn call.
func Consume[T any](ctx context.Context, b MessageBus, topic string, fn func(T)) <-chan struct{} {
	sub := b.Subscribe(topic)
	done := make(chan struct{})
	deliver := func(raw any) {
		if msg, ok := raw.(T); ok {
			fn(msg)
		}
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				go b.Unsubscribe(sub, topic)
				for raw := range sub {
					deliver(raw)
				}

				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				deliver(raw)
			}
		}
	}()

	return done
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}

	return reflect.TypeOf(v).String()
}
