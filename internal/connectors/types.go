package connectors

import "time"

// ConnectionState describes the link lifecycle state.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot of the current link status.
type ConnectionStatus struct {
	State         ConnectionState `json:"state"`
	Err           string          `json:"error,omitempty"`
	TransportName string          `json:"transport"`
	Target        string          `json:"target,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// RawLine carries one framed line for debug views.
type RawLine struct {
	Text string
	Len  int
}

// MalformedLine reports a line the receiver could not decode.
type MalformedLine struct {
	Preview string
	Err     string
	At      time.Time
}
