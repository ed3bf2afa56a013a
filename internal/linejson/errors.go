package linejson

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConcurrentRead is returned when Next is called while another Next is in flight.
var ErrConcurrentRead = errors.New("concurrent read on line receiver")

// ErrEmbeddedNewline is returned when a raw payload would break line framing.
var ErrEmbeddedNewline = errors.New("payload contains a line terminator")

const maxLinePreview = 96

// MalformedPolicy decides what the receiver does with a line that cannot be decoded.
type MalformedPolicy string

const (
	// PolicyFail ends the read loop with a *MalformedLineError.
	PolicyFail MalformedPolicy = "fail"
	// PolicySkip logs the line and keeps reading.
	PolicySkip MalformedPolicy = "skip"
)

func ParsePolicy(raw string) (MalformedPolicy, error) {
	switch MalformedPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyFail, "":
		return PolicyFail, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unsupported malformed line policy: %q", raw)
	}
}

// MalformedLineError describes a line that was framed correctly but could not be decoded.
type MalformedLineError struct {
	Line string
	Err  error
}

func (e *MalformedLineError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("malformed line: %v", e.Err)
	}

	return fmt.Sprintf("malformed line %q: %v", Preview(e.Line), e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

// Preview shortens a line for logs and error messages.
func Preview(line string) string {
	if len(line) <= maxLinePreview {
		return line
	}

	return line[:maxLinePreview] + "..."
}
