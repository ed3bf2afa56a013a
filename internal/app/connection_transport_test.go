package app

import (
	"testing"

	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/transport"
)

func TestNewTransportForConnection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ConnectionConfig
		want    string
		wantErr bool
	}{
		{
			name: "ip",
			cfg: config.ConnectionConfig{
				Connector: config.ConnectorIP,
				Host:      "127.0.0.1",
			},
			want: "ip",
		},
		{
			name: "serial",
			cfg: config.ConnectionConfig{
				Connector:  config.ConnectorSerial,
				SerialPort: "/dev/ttyACM0",
			},
			want: "serial",
		},
		{
			name:    "unknown",
			cfg:     config.ConnectionConfig{Connector: "bluetooth"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tr, err := NewTransportForConnection(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tc.name)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tr.Name() != tc.want {
			t.Fatalf("%s: expected transport %q, got %q", tc.name, tc.want, tr.Name())
		}
	}
}

func TestNewTransportForConnectionAppliesDefaults(t *testing.T) {
	tr, err := NewTransportForConnection(config.ConnectionConfig{
		Connector:  config.ConnectorSerial,
		SerialPort: "COM3",
	})
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	serialTr, ok := tr.(*transport.SerialTransport)
	if !ok {
		t.Fatalf("expected serial transport, got %T", tr)
	}
	if serialTr.BaudRate() != config.DefaultSerialBaud {
		t.Fatalf("expected default baud %d, got %d", config.DefaultSerialBaud, serialTr.BaudRate())
	}

	tr, err = NewTransportForConnection(config.ConnectionConfig{
		Connector: config.ConnectorIP,
		Host:      "bridge.local",
	})
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	resolver, ok := tr.(transport.StatusTargetResolver)
	if !ok {
		t.Fatalf("expected ip transport to resolve a status target")
	}
	if got := resolver.StatusTarget(); got != "bridge.local:2000" {
		t.Fatalf("expected default bridge port in target, got %q", got)
	}
}
