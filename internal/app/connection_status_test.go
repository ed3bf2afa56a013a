package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skobkin/joylink/internal/bus"
	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/connectors"
)

func TestTransportNameFromConnector(t *testing.T) {
	tests := []struct {
		name      string
		connector config.ConnectorType
		want      string
	}{
		{name: "ip", connector: config.ConnectorIP, want: "ip"},
		{name: "serial", connector: config.ConnectorSerial, want: "serial"},
		{name: "unknown", connector: "custom", want: "custom"},
		{name: "empty", connector: "", want: "unknown"},
	}

	for _, tc := range tests {
		if got := TransportNameFromConnector(tc.connector); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ConnectionConfig
		want string
	}{
		{name: "ip", cfg: config.ConnectionConfig{Connector: config.ConnectorIP, Host: "192.168.1.10", Port: 3000}, want: "192.168.1.10:3000"},
		{name: "ip default port", cfg: config.ConnectionConfig{Connector: config.ConnectorIP, Host: "bridge"}, want: "bridge:2000"},
		{name: "ip no host", cfg: config.ConnectionConfig{Connector: config.ConnectorIP}, want: ""},
		{name: "serial", cfg: config.ConnectionConfig{Connector: config.ConnectorSerial, SerialPort: " /dev/ttyACM0 "}, want: "/dev/ttyACM0"},
		{name: "unknown", cfg: config.ConnectionConfig{Connector: "custom"}, want: ""},
	}

	for _, tc := range tests {
		if got := ConnectionTarget(tc.cfg); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestConnectionStatusTrackerFollowsBus(t *testing.T) {
	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 8)
	t.Cleanup(b.Close)

	initial := ConnectionStatusFromConfig(config.ConnectionConfig{
		Connector:  config.ConnectorSerial,
		SerialPort: "/dev/ttyACM2",
	})
	if initial.State != connectors.ConnectionStateDisconnected || initial.Target != "/dev/ttyACM2" {
		t.Fatalf("unexpected initial status: %+v", initial)
	}

	tracker := NewConnectionStatusTracker(initial)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx, b)

	b.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "serial",
		Target:        "/dev/ttyACM2@9600",
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tracker.Current().State == connectors.ConnectionStateConnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("tracker did not observe connected state, last %+v", tracker.Current())
}
