package platform

import (
	"errors"
	"strings"
)

// ErrPortLocked indicates another process already reads from the serial port.
var ErrPortLocked = errors.New("serial port is locked by another process")

// ErrPortLockUnsupported indicates the current platform has no lock backend implementation.
var ErrPortLockUnsupported = errors.New("port lock unsupported")

// PortLock is an advisory lock held for the lifetime of one opened port.
type PortLock interface {
	Release() error
}

// AcquirePortLock takes the per-port lock for appID. It never blocks.
func AcquirePortLock(appID, portName string) (PortLock, error) {
	return acquirePortLock(
		normalizeLockComponent(appID, "app"),
		normalizeLockComponent(portName, "port"),
	)
}

func normalizeLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
