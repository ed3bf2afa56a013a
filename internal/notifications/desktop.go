package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

type notifyFunc func(title, message string, icon any) error

// DesktopSender shows notifications through the OS notification daemon.
type DesktopSender struct {
	logger *slog.Logger
	notify notifyFunc
}

func NewDesktopSender(logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &DesktopSender{logger: logger, notify: beeep.Notify}
}

func (s *DesktopSender) Send(payload Payload) {
	if s == nil || s.notify == nil {
		return
	}

	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return
	}

	if err := s.notify(title, content, ""); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}
