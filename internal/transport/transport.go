package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Read and Write before Connect succeeds or after Close.
var ErrNotConnected = errors.New("transport is not connected")

// Transport is a duplex byte stream to the peripheral.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	// Read blocks until at least one byte arrives, the stream ends (io.EOF),
	// or ctx is done.
	Read(ctx context.Context, p []byte) (int, error)
	// Write sends the whole buffer or fails.
	Write(ctx context.Context, p []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}
