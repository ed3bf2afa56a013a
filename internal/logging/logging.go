package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skobkin/joylink/internal/config"
)

// Manager owns app logger configuration and optional log file lifecycle.
// Components can log at their own level; the rest use the global one.
type Manager struct {
	mu         sync.RWMutex
	base       slog.Handler
	level      slog.Level
	components map[string]slog.Level
	logger     *slog.Logger
	file       *os.File
}

func NewManager() *Manager {
	m := &Manager{level: slog.LevelInfo}
	m.base = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	m.logger = slog.New(&levelHandler{level: m.level, inner: m.base})

	return m
}

func (m *Manager) Configure(cfg config.LoggingConfig, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	components := make(map[string]slog.Level, len(cfg.Components))
	lowest := level
	for name, raw := range cfg.Components {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("component log level has an empty component name")
		}
		compLevel, err := parseLevel(raw)
		if err != nil {
			return fmt.Errorf("component %s: %w", name, err)
		}
		components[name] = compLevel
		lowest = min(lowest, compLevel)
	}

	writer := io.Writer(os.Stdout)
	if cfg.LogToFile {
		if strings.TrimSpace(filePath) == "" {
			return errors.New("log to file is enabled but no log file path is set")
		}
		cleanPath := filepath.Clean(filePath)
		// #nosec G304 -- path is resolved by app runtime and points to user config dir.
		file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
		writer = newFanoutWriter(os.Stdout, file)
	}

	h, err := newHandler(cfg.Format, writer, lowest)
	if err != nil {
		if m.file != nil {
			_ = m.file.Close()
			m.file = nil
		}

		return err
	}
	m.base = h
	m.level = level
	m.components = components
	m.logger = slog.New(&levelHandler{level: level, inner: h})
	slog.SetDefault(m.logger)

	return nil
}

// Logger returns a logger tagged with component. A dotted name such as
// "device.link" falls back to the level of "device" when it has none.
func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	level := m.componentLevel(component)

	return slog.New(&levelHandler{level: level, inner: m.base}).With("component", component)
}

func (m *Manager) componentLevel(component string) slog.Level {
	for name := component; name != ""; {
		if level, ok := m.components[name]; ok {
			return level
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}

	return m.level
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			return err
		}
		m.file = nil
	}

	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level: %q", raw)
	}
}

func newHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %q", format)
	}
}

// levelHandler filters records below level before they reach inner, which
// is built for the lowest configured level.
type levelHandler struct {
	level slog.Level
	inner slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.inner.Enabled(ctx, level)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

type fanoutWriter struct {
	writers []io.Writer
}

func newFanoutWriter(writers ...io.Writer) io.Writer {
	filtered := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			filtered = append(filtered, w)
		}
	}

	return &fanoutWriter{writers: filtered}
}

func (w *fanoutWriter) Write(p []byte) (int, error) {
	var (
		wroteAny bool
		firstErr error
	)

	for _, dst := range w.writers {
		n, err := dst.Write(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}
		if n != len(p) {
			if firstErr == nil {
				firstErr = io.ErrShortWrite
			}

			continue
		}
		wroteAny = true
	}

	if wroteAny {
		return len(p), nil
	}
	if firstErr != nil {
		return 0, firstErr
	}

	return len(p), nil
}
