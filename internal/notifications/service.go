package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/connectors"
)

// ConnectionNotifier turns link state transitions into notifications.
type ConnectionNotifier struct {
	bus     bus.MessageBus
	sender  Sender
	enabled func() bool
	logger  *slog.Logger

	mu           sync.Mutex
	lastState    connectors.ConnectionState
	lastStateSet bool
}

// NewConnectionNotifier creates a notifier. A nil enabled func means always on.
func NewConnectionNotifier(messageBus bus.MessageBus, sender Sender, enabled func() bool, logger *slog.Logger) *ConnectionNotifier {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &ConnectionNotifier{
		bus:     messageBus,
		sender:  sender,
		enabled: enabled,
		logger:  logger,
	}
}

func (n *ConnectionNotifier) Start(ctx context.Context) {
	if n == nil || n.bus == nil || n.sender == nil {
		return
	}
	bus.Consume(ctx, n.bus, connectors.TopicConnStatus, n.handleConnectionStatus)
}

func (n *ConnectionNotifier) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	n.mu.Lock()
	if n.lastStateSet && n.lastState == status.State {
		n.mu.Unlock()

		return
	}
	n.lastState = status.State
	n.lastStateSet = true
	n.mu.Unlock()

	if status.State != connectors.ConnectionStateConnected &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}
	if n.enabled != nil && !n.enabled() {
		return
	}

	n.send(Payload{
		Title:   fmt.Sprintf("%s - %s", transportTitle(status.TransportName), status.State),
		Content: statusDetails(status),
	})
}

func (n *ConnectionNotifier) send(payload Payload) {
	n.logger.Debug("sending notification", "title", payload.Title)
	n.sender.Send(payload)
}

func statusDetails(status connectors.ConnectionStatus) string {
	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No connection details"
	}
	if status.State == connectors.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	return details
}

func transportTitle(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ip":
		return "IP"
	case "serial":
		return "Serial"
	case "":
		return "Unknown"
	default:
		return strings.TrimSpace(name)
	}
}
