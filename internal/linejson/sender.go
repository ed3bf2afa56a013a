package linejson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultTerminator ends every outbound line.
const DefaultTerminator = "\n"

// Sink is the writable half of a duplex byte stream.
type Sink interface {
	Write(ctx context.Context, p []byte) error
}

// SenderOptions customizes Sender behavior.
type SenderOptions struct {
	// Terminator is appended to each payload. Nil means DefaultTerminator;
	// an empty string sends bare JSON.
	Terminator *string
}

// Sender writes one JSON value per write call. Concurrent sends never interleave.
type Sender struct {
	sink       Sink
	terminator []byte

	mu sync.Mutex
}

func NewSender(sink Sink, opts SenderOptions) *Sender {
	terminator := DefaultTerminator
	if opts.Terminator != nil {
		terminator = *opts.Terminator
	}

	return &Sender{
		sink:       sink,
		terminator: []byte(terminator),
	}
}

// Send serializes v and writes it. done, if set, runs after a successful write.
func (s *Sender) Send(ctx context.Context, v any, done func()) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return s.SendRaw(ctx, payload, done)
}

// SendRaw writes an already serialized JSON payload.
func (s *Sender) SendRaw(ctx context.Context, payload []byte, done func()) error {
	if bytes.IndexByte(payload, '\n') >= 0 {
		return ErrEmbeddedNewline
	}

	frame := make([]byte, 0, len(payload)+len(s.terminator))
	frame = append(frame, payload...)
	frame = append(frame, s.terminator...)

	s.mu.Lock()
	err := s.sink.Write(ctx, frame)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	if done != nil {
		done()
	}

	return nil
}

// Terminator returns the configured line terminator.
func (s *Sender) Terminator() string {
	return string(s.terminator)
}
