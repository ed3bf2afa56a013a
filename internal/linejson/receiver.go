package linejson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

const (
	DefaultMaxLineBytes   = 4096
	defaultReadBufferSize = 256
)

// Source is the readable half of a duplex byte stream.
type Source interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// ReceiverOptions customizes Receiver behavior.
type ReceiverOptions struct {
	Policy         MalformedPolicy
	MaxLineBytes   int
	ReadBufferSize int
	Logger         *slog.Logger
	// OnLine observes every complete line after decoding, before JSON parsing.
	OnLine func(line []byte)
	// OnMalformed observes every malformed line regardless of policy.
	OnMalformed func(err *MalformedLineError)
}

// Receiver decodes newline-delimited JSON records from a Source.
// Only one Next call may be outstanding at a time.
type Receiver struct {
	src    Source
	opts   ReceiverOptions
	logger *slog.Logger

	readMu    sync.Mutex
	lines     *LineBuffer
	chunk     []byte
	firstDec  *encoding.Decoder
	dec       *encoding.Decoder
	firstLine bool
	eof       bool

	latestMu sync.RWMutex
	latest   json.RawMessage
}

func NewReceiver(src Source, opts ReceiverOptions) *Receiver {
	if opts.Policy == "" {
		opts.Policy = PolicyFail
	}
	if opts.MaxLineBytes == 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "linejson")
	}

	return &Receiver{
		src:       src,
		opts:      opts,
		logger:    logger,
		lines:     NewLineBuffer(opts.MaxLineBytes),
		chunk:     make([]byte, opts.ReadBufferSize),
		firstDec:  unicode.UTF8BOM.NewDecoder(),
		dec:       unicode.UTF8.NewDecoder(),
		firstLine: true,
	}
}

// Next blocks until the next record is decoded or the stream ends.
// It returns io.EOF on end of stream; a trailing unterminated line is discarded.
func (r *Receiver) Next(ctx context.Context) (json.RawMessage, error) {
	if !r.readMu.TryLock() {
		return nil, ErrConcurrentRead
	}
	defer r.readMu.Unlock()

	for {
		line, ok, err := r.lines.Next()
		if err != nil {
			if mErr := r.malformed(&MalformedLineError{Err: err}); mErr != nil {
				return nil, mErr
			}

			continue
		}
		if ok {
			record, err := r.decodeLine(line)
			if err != nil {
				if mErr := r.malformed(err); mErr != nil {
					return nil, mErr
				}

				continue
			}
			if record == nil {
				continue
			}
			r.setLatest(record)

			return record, nil
		}

		if r.eof {
			if pending := r.lines.Pending(); pending > 0 {
				r.logger.Debug("discarding unterminated line at end of stream", "len", pending)
				r.lines.Reset()
			}

			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.src.Read(ctx, r.chunk)
		if n > 0 {
			_, _ = r.lines.Write(r.chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true

				continue
			}

			return nil, fmt.Errorf("read stream: %w", err)
		}
	}
}

// Run calls fn for every record until the stream ends, fn fails, or a read fails.
// End of stream is not an error.
func (r *Receiver) Run(ctx context.Context, fn func(json.RawMessage) error) error {
	for {
		record, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

// Latest returns the most recently decoded record, if any.
func (r *Receiver) Latest() (json.RawMessage, bool) {
	r.latestMu.RLock()
	defer r.latestMu.RUnlock()

	return r.latest, r.latest != nil
}

// Malformed routes a decoding failure found by a caller through the receiver policy.
// It returns nil when the line should be skipped.
func (r *Receiver) Malformed(line []byte, err error) error {
	return r.malformed(&MalformedLineError{Line: string(line), Err: err})
}

func (r *Receiver) decodeLine(raw []byte) (json.RawMessage, *MalformedLineError) {
	// '\n' never occurs inside a multi-byte UTF-8 sequence, so decoding whole
	// lines is equivalent to decoding the stream incrementally.
	dec := r.dec
	if r.firstLine {
		dec = r.firstDec
		r.firstLine = false
	}
	text, err := dec.Bytes(raw)
	if err != nil {
		return nil, &MalformedLineError{Line: string(raw), Err: fmt.Errorf("decode utf-8: %w", err)}
	}
	if r.opts.OnLine != nil {
		r.opts.OnLine(text)
	}

	text = bytes.TrimSpace(text)
	if len(text) == 0 {
		return nil, nil
	}

	var record json.RawMessage
	if err := json.Unmarshal(text, &record); err != nil {
		return nil, &MalformedLineError{Line: string(text), Err: err}
	}

	return record, nil
}

func (r *Receiver) malformed(err *MalformedLineError) error {
	if r.opts.OnMalformed != nil {
		r.opts.OnMalformed(err)
	}
	if r.opts.Policy == PolicySkip {
		r.logger.Warn("skipping malformed line", "line", Preview(err.Line), "error", err.Err)

		return nil
	}

	return err
}

func (r *Receiver) setLatest(record json.RawMessage) {
	r.latestMu.Lock()
	r.latest = record
	r.latestMu.Unlock()
}
