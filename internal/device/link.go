package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skobkin/joylink/internal/domain"
	"github.com/skobkin/joylink/internal/linejson"
	"github.com/skobkin/joylink/internal/transport"
)

// ErrNotOpen is returned when reading or writing before the link is opened.
var ErrNotOpen = errors.New("link is not open")

// LinkOptions configures framing on an opened link.
type LinkOptions struct {
	Policy       linejson.MalformedPolicy
	MaxLineBytes int
	// Terminator is appended to outbound lines; nil means "\n".
	Terminator  *string
	Logger      *slog.Logger
	OnLine      func(line []byte)
	OnMalformed func(err *linejson.MalformedLineError)
	// OnIgnored sees records that are valid JSON but not joystick readings.
	OnIgnored func(record json.RawMessage, err error)
}

// Link is the per-transport context: it owns the transport handle while open,
// the line framing on both directions, the latest inbound reading, and the
// outbound LED record.
type Link struct {
	tr     transport.Transport
	codec  Codec
	opts   LinkOptions
	logger *slog.Logger

	mu       sync.RWMutex
	open     bool
	receiver *linejson.Receiver
	sender   *linejson.Sender

	latestMu  sync.RWMutex
	latest    domain.JoystickReading
	hasLatest bool

	outMu    sync.Mutex
	outbound domain.LEDCommand
}

func NewLink(tr transport.Transport, codec Codec, opts LinkOptions) *Link {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "device.link")
	}
	if codec == nil {
		codec = NewJSONCodec()
	}

	return &Link{
		tr:     tr,
		codec:  codec,
		opts:   opts,
		logger: logger,
	}
}

// Open connects the transport. It never retries; the caller decides what to do
// with a failure.
func (l *Link) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open {
		return nil
	}
	if l.tr == nil {
		return errors.New("link has no transport")
	}
	if err := l.tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s transport: %w", l.tr.Name(), err)
	}

	l.receiver = linejson.NewReceiver(l.tr, linejson.ReceiverOptions{
		Policy:       l.opts.Policy,
		MaxLineBytes: l.opts.MaxLineBytes,
		Logger:       l.logger,
		OnLine:       l.opts.OnLine,
		OnMalformed:  l.opts.OnMalformed,
	})
	l.sender = linejson.NewSender(l.tr, linejson.SenderOptions{Terminator: l.opts.Terminator})
	l.open = true
	l.logger.Info("link opened", "transport", l.tr.Name())

	return nil
}

func (l *Link) IsOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.open
}

// Close releases the transport. A blocked Next returns io.EOF or an error.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return nil
	}
	l.open = false
	l.receiver = nil
	l.sender = nil
	if err := l.tr.Close(); err != nil {
		return fmt.Errorf("close %s transport: %w", l.tr.Name(), err)
	}
	l.logger.Info("link closed", "transport", l.tr.Name())

	return nil
}

// Next blocks until the next joystick reading arrives. Records that are valid
// JSON but not readings are skipped. Other codec failures follow the
// malformed-line policy.
func (l *Link) Next(ctx context.Context) (domain.JoystickReading, error) {
	l.mu.RLock()
	receiver := l.receiver
	l.mu.RUnlock()
	if receiver == nil {
		return domain.JoystickReading{}, ErrNotOpen
	}

	for {
		raw, err := receiver.Next(ctx)
		if err != nil {
			return domain.JoystickReading{}, err
		}
		reading, err := l.codec.DecodeReading(raw)
		if errors.Is(err, ErrNotReading) {
			l.logger.Debug("ignoring non-reading record", "record", linejson.Preview(string(raw)), "error", err)
			if l.opts.OnIgnored != nil {
				l.opts.OnIgnored(raw, err)
			}

			continue
		}
		if err != nil {
			if mErr := receiver.Malformed(raw, err); mErr != nil {
				return domain.JoystickReading{}, mErr
			}

			continue
		}
		l.setLatest(reading)

		return reading, nil
	}
}

// Latest returns the most recent reading; there is no history.
func (l *Link) Latest() (domain.JoystickReading, bool) {
	l.latestMu.RLock()
	defer l.latestMu.RUnlock()

	return l.latest, l.hasLatest
}

// Outbound returns a copy of the outbound record.
func (l *Link) Outbound() domain.LEDCommand {
	l.outMu.Lock()
	defer l.outMu.Unlock()

	return l.outbound.Clone()
}

// UpdateOutbound mutates the outbound record in place without sending it.
func (l *Link) UpdateOutbound(fn func(cmd *domain.LEDCommand)) domain.LEDCommand {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	fn(&l.outbound)

	return l.outbound.Clone()
}

// Flush serializes the current outbound record and writes it as one line.
// done, if set, runs after a successful write.
func (l *Link) Flush(ctx context.Context, done func()) (domain.SentCommand, error) {
	l.mu.RLock()
	sender := l.sender
	l.mu.RUnlock()
	if sender == nil {
		return domain.SentCommand{}, ErrNotOpen
	}

	cmd := l.Outbound()
	payload, err := l.codec.EncodeCommand(cmd)
	if err != nil {
		return domain.SentCommand{}, err
	}
	if err := sender.SendRaw(ctx, payload, done); err != nil {
		return domain.SentCommand{}, err
	}

	return domain.SentCommand{Command: cmd, Payload: string(payload)}, nil
}

// Target describes the transport endpoint for status views.
func (l *Link) Target() string {
	if resolver, ok := l.tr.(transport.StatusTargetResolver); ok {
		return resolver.StatusTarget()
	}

	return ""
}

func (l *Link) TransportName() string {
	if l.tr == nil {
		return "unknown"
	}

	return l.tr.Name()
}

func (l *Link) setLatest(r domain.JoystickReading) {
	l.latestMu.Lock()
	l.latest = r
	l.hasLatest = true
	l.latestMu.Unlock()
}
