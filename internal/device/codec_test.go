package device

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/skobkin/joylink/internal/domain"
)

func TestJSONCodecDecodeReading(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.JoystickReading
		wantErr bool
	}{
		{name: "full", raw: `{"x":512,"y":3,"pressed":true}`, want: domain.JoystickReading{X: 512, Y: 3, Pressed: true}},
		{name: "partial", raw: `{"pressed":false}`, want: domain.JoystickReading{}},
		{name: "extra fields", raw: `{"x":1,"seq":9}`, want: domain.JoystickReading{X: 1}},
		{name: "no joystick fields", raw: `{"a":1}`, wantErr: true},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "wrong type", raw: `{"x":"left"}`, wantErr: true},
	}

	codec := NewJSONCodec()
	for _, tc := range tests {
		got, err := codec.DecodeReading(json.RawMessage(tc.raw))
		if tc.wantErr {
			if !errors.Is(err, ErrNotReading) {
				t.Fatalf("%s: expected ErrNotReading, got %v", tc.name, err)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got.X != tc.want.X || got.Y != tc.want.Y || got.Pressed != tc.want.Pressed {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
		if got.ReceivedAt.IsZero() {
			t.Fatalf("%s: expected receive time", tc.name)
		}
	}
}

func TestJSONCodecEncodeCommandValidates(t *testing.T) {
	codec := NewJSONCodec()
	if _, err := codec.EncodeCommand(domain.LEDCommand{}); err == nil {
		t.Fatalf("expected empty command to fail")
	}
	if _, err := codec.EncodeCommand(domain.RGB(0, 0, 300)); err == nil {
		t.Fatalf("expected out-of-range command to fail")
	}

	payload, err := codec.EncodeCommand(domain.RGB(255, 0, 0))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(payload) != `{"red":255,"green":0,"blue":0}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}
