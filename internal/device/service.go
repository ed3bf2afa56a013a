package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/connectors"
	"github.com/skobkin/joylink/internal/domain"
	"github.com/skobkin/joylink/internal/linejson"
)

type SendResult struct {
	Command domain.SentCommand
	Err     error
}

// ServiceOptions wires optional collaborators of Service.
type ServiceOptions struct {
	Reaction *Reaction
	Observer Observer
	// Now is used to stamp published events; defaults to time.Now.
	Now func() time.Time
}

// Service drives one Link: it reads readings until the stream ends, publishes
// them to the bus, and sends LED commands on request.
type Service struct {
	logger   *slog.Logger
	link     *Link
	bus      bus.MessageBus
	reaction *Reaction
	observer Observer
	now      func() time.Time
}

// NewService attaches bus publishers to the line hooks of link. Call it before
// the link is opened.
func NewService(logger *slog.Logger, b bus.MessageBus, link *Link, opts ServiceOptions) *Service {
	if logger == nil {
		logger = slog.Default().With("component", "device.service")
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		logger:   logger,
		link:     link,
		bus:      b,
		reaction: opts.Reaction,
		observer: observer,
		now:      now,
	}
	link.opts.OnLine = chainLine(link.opts.OnLine, s.onLine)
	link.opts.OnMalformed = chainMalformed(link.opts.OnMalformed, s.onMalformed)
	link.opts.OnIgnored = chainIgnored(link.opts.OnIgnored, s.onIgnored)

	return s
}

func (s *Service) Link() *Link {
	return s.link
}

// Connect opens the link once. A failure is published and returned; there is
// no retry.
func (s *Service) Connect(ctx context.Context) error {
	s.publishConnStatus(connectors.ConnectionStateConnecting, nil)
	if err := s.link.Open(ctx); err != nil {
		s.publishConnStatus(connectors.ConnectionStateDisconnected, err)
		s.logger.Error("link open failed", "error", err)

		return err
	}
	s.publishConnStatus(connectors.ConnectionStateConnected, nil)

	return nil
}

// Serve reads until end of stream, a read or decode failure, or ctx is done.
// End of stream returns nil. The link is closed on return.
func (s *Service) Serve(ctx context.Context) error {
	err := s.readLoop(ctx)
	if closeErr := s.link.Close(); closeErr != nil {
		s.logger.Warn("link close failed", "error", closeErr)
	}

	switch {
	case err == nil, errors.Is(err, io.EOF):
		s.logger.Info("stream ended")
		s.publishConnStatus(connectors.ConnectionStateDisconnected, nil)

		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		s.publishConnStatus(connectors.ConnectionStateDisconnected, nil)

		return err
	default:
		s.logger.Error("read loop stopped", "error", err)
		s.publishConnStatus(connectors.ConnectionStateDisconnected, err)

		return err
	}
}

// Run is Connect followed by Serve.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	return s.Serve(ctx)
}

// SendCommand merges update into the outbound record and writes it as one
// line. The write happens right away; the channel carries the outcome.
func (s *Service) SendCommand(ctx context.Context, update domain.LEDCommand) <-chan SendResult {
	resCh := make(chan SendResult, 1)
	if err := update.Validate(); err != nil {
		resCh <- SendResult{Err: err}
		close(resCh)

		return resCh
	}

	go func() {
		defer close(resCh)
		resCh <- s.send(ctx, update)
	}()

	return resCh
}

func (s *Service) send(ctx context.Context, update domain.LEDCommand) SendResult {
	if !s.link.IsOpen() {
		s.observer.SendFailed()

		return SendResult{Err: ErrNotOpen}
	}
	s.link.UpdateOutbound(func(cmd *domain.LEDCommand) {
		*cmd = cmd.Merge(update)
	})

	sent, err := s.link.Flush(ctx, nil)
	if err != nil {
		s.observer.SendFailed()

		return SendResult{Err: fmt.Errorf("send led command: %w", err)}
	}
	sent.SentAt = s.now()
	s.observer.CommandSent()
	s.bus.Publish(connectors.TopicRawLineOut, connectors.RawLine{Text: sent.Payload, Len: len(sent.Payload)})
	s.bus.Publish(connectors.TopicCommandSent, sent)

	return SendResult{Command: sent}
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		reading, err := s.link.Next(ctx)
		if err != nil {
			return err
		}
		s.observer.ReadingDecoded()
		s.logger.Debug("joystick reading", "x", reading.X, "y", reading.Y, "pressed", reading.Pressed)
		s.bus.Publish(connectors.TopicReading, reading)
		s.react(ctx, reading)
	}
}

func (s *Service) react(ctx context.Context, reading domain.JoystickReading) {
	if s.reaction == nil {
		return
	}
	update, ok := s.reaction.Next(reading)
	if !ok {
		return
	}
	if res := s.send(ctx, update); res.Err != nil {
		s.logger.Warn("reaction send failed", "mode", s.reaction.Mode, "error", res.Err)
	}
}

func (s *Service) onLine(line []byte) {
	s.observer.LineReceived(len(line))
	s.bus.Publish(connectors.TopicRawLineIn, connectors.RawLine{Text: string(line), Len: len(line)})
}

func (s *Service) onMalformed(err *linejson.MalformedLineError) {
	s.observer.MalformedLine()
	s.bus.Publish(connectors.TopicMalformedLine, connectors.MalformedLine{
		Preview: linejson.Preview(err.Line),
		Err:     err.Err.Error(),
		At:      s.now(),
	})
}

func (s *Service) onIgnored(json.RawMessage, error) {
	s.observer.RecordIgnored()
}

func (s *Service) publishConnStatus(state connectors.ConnectionState, err error) {
	s.observer.ConnectionState(state)
	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: s.link.TransportName(),
		Target:        s.link.Target(),
		Timestamp:     s.now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(connectors.TopicConnStatus, status)
}

func chainLine(first, second func([]byte)) func([]byte) {
	if first == nil {
		return second
	}

	return func(line []byte) {
		first(line)
		second(line)
	}
}

func chainIgnored(first, second func(json.RawMessage, error)) func(json.RawMessage, error) {
	if first == nil {
		return second
	}

	return func(record json.RawMessage, err error) {
		first(record, err)
		second(record, err)
	}
}

func chainMalformed(first, second func(*linejson.MalformedLineError)) func(*linejson.MalformedLineError) {
	if first == nil {
		return second
	}

	return func(err *linejson.MalformedLineError) {
		first(err)
		second(err)
	}
}
