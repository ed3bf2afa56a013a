package app

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/connectors"
)

func TransportNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorIP:
		return "ip"
	case config.ConnectorSerial:
		return "serial"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}

		return "unknown"
	}
}

func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorIP:
		host := strings.TrimSpace(cfg.Host)
		if host == "" {
			return ""
		}
		port := cfg.Port
		if port <= 0 {
			port = config.DefaultIPPort
		}

		return net.JoinHostPort(host, strconv.Itoa(port))
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort)
	default:
		return ""
	}
}

// ConnectionStatusFromConfig is the status reported before the link has ever
// been opened.
func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnectionStatus {
	return connectors.ConnectionStatus{
		State:         connectors.ConnectionStateDisconnected,
		TransportName: TransportNameFromConnector(cfg.Connector),
		Target:        ConnectionTarget(cfg),
	}
}

// ConnectionStatusTracker remembers the last connection status seen on the bus.
type ConnectionStatusTracker struct {
	mu     sync.RWMutex
	status connectors.ConnectionStatus
}

func NewConnectionStatusTracker(initial connectors.ConnectionStatus) *ConnectionStatusTracker {
	return &ConnectionStatusTracker{status: initial}
}

func (t *ConnectionStatusTracker) Start(ctx context.Context, b bus.MessageBus) {
	bus.Consume(ctx, b, connectors.TopicConnStatus, t.Set)
}

func (t *ConnectionStatusTracker) Set(status connectors.ConnectionStatus) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
}

func (t *ConnectionStatusTracker) Current() connectors.ConnectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.status
}
