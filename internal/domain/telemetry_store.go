package domain

import (
	"context"
	"sync"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/connectors"
)

// TelemetryStore keeps the latest joystick reading and the last sent LED command.
// It keeps no history: every new reading replaces the previous one.
type TelemetryStore struct {
	mu          sync.RWMutex
	reading     JoystickReading
	haveReading bool
	command     SentCommand
	haveCommand bool
	readings    uint64
	changes     chan struct{}
}

func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{
		changes: make(chan struct{}, 1),
	}
}

func (s *TelemetryStore) Start(ctx context.Context, b bus.MessageBus) {
	bus.Consume(ctx, b, connectors.TopicReading, s.SetReading)
	bus.Consume(ctx, b, connectors.TopicCommandSent, s.SetCommand)
}

func (s *TelemetryStore) SetReading(r JoystickReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Out-of-order delivery must not roll the snapshot back.
	if s.haveReading && r.ReceivedAt.Before(s.reading.ReceivedAt) {
		return
	}
	s.reading = r
	s.haveReading = true
	s.readings++
	s.notify()
}

func (s *TelemetryStore) SetCommand(c SentCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Command = c.Command.Clone()
	s.command = c
	s.haveCommand = true
	s.notify()
}

func (s *TelemetryStore) Latest() (JoystickReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reading, s.haveReading
}

func (s *TelemetryStore) LastCommand() (SentCommand, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.command
	c.Command = c.Command.Clone()

	return c, s.haveCommand
}

// ReadingCount is the number of readings accepted since start or reset.
func (s *TelemetryStore) ReadingCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readings
}

func (s *TelemetryStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *TelemetryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = JoystickReading{}
	s.haveReading = false
	s.command = SentCommand{}
	s.haveCommand = false
	s.readings = 0
	s.notify()
}

func (s *TelemetryStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
