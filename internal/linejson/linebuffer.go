package linejson

import (
	"bytes"
	"errors"
)

// ErrLineTooLong is reported when a line grows beyond the configured limit.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// LineBuffer accumulates raw bytes and hands out complete newline-terminated lines.
// Between calls to Next it holds at most one partial line.
type LineBuffer struct {
	buf        []byte
	maxBytes   int
	discarding bool
}

// NewLineBuffer creates a buffer. maxBytes <= 0 disables the length limit.
func NewLineBuffer(maxBytes int) *LineBuffer {
	return &LineBuffer{maxBytes: maxBytes}
}

func (b *LineBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)

	return len(p), nil
}

// Next pops the next complete line without its terminator.
// ok is false when no complete line is buffered yet. ErrLineTooLong is returned
// once per oversized line; the rest of that line is dropped up to its newline.
func (b *LineBuffer) Next() (line []byte, ok bool, err error) {
	for {
		idx := bytes.IndexByte(b.buf, '\n')
		if idx < 0 {
			if b.maxBytes > 0 && len(b.buf) > b.maxBytes {
				b.buf = b.buf[:0]
				if b.discarding {
					return nil, false, nil
				}
				b.discarding = true

				return nil, false, ErrLineTooLong
			}

			return nil, false, nil
		}

		line = b.take(idx)
		if b.discarding {
			b.discarding = false

			continue
		}
		if b.maxBytes > 0 && len(line) > b.maxBytes {
			return nil, false, ErrLineTooLong
		}

		return line, true, nil
	}
}

// Pending reports the size of the buffered partial line.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

func (b *LineBuffer) Reset() {
	b.buf = b.buf[:0]
	b.discarding = false
}

func (b *LineBuffer) take(idx int) []byte {
	line := make([]byte, idx)
	copy(line, b.buf[:idx])
	n := copy(b.buf, b.buf[idx+1:])
	b.buf = b.buf[:n]

	return line
}
