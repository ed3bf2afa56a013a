package app

import (
	"fmt"

	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/transport"
)

// NewTransportForConnection builds the transport selected by cfg. Nothing is
// opened until the link connects.
func NewTransportForConnection(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorIP:
		port := cfg.Port
		if port <= 0 {
			port = config.DefaultIPPort
		}

		return transport.NewIPTransport(cfg.Host, port), nil
	case config.ConnectorSerial:
		baud := cfg.SerialBaud
		if baud <= 0 {
			baud = config.DefaultSerialBaud
		}

		return transport.NewSerialTransport(cfg.SerialPort, baud), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}
