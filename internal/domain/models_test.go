package domain

import (
	"encoding/json"
	"testing"
)

func TestLEDCommandJSONOmitsUnsetChannels(t *testing.T) {
	tests := []struct {
		name string
		cmd  LEDCommand
		want string
	}{
		{name: "rgb", cmd: RGB(255, 0, 12), want: `{"red":255,"green":0,"blue":12}`},
		{name: "brightness", cmd: Brightness(0), want: `{"brightness":0}`},
		{name: "empty", cmd: LEDCommand{}, want: `{}`},
	}

	for _, tc := range tests {
		raw, err := json.Marshal(tc.cmd)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		if string(raw) != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, raw)
		}
	}
}

func TestLEDCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     LEDCommand
		wantErr bool
	}{
		{name: "rgb bounds", cmd: RGB(0, 128, 255)},
		{name: "brightness", cmd: Brightness(42)},
		{name: "empty", cmd: LEDCommand{}, wantErr: true},
		{name: "negative", cmd: RGB(-1, 0, 0), wantErr: true},
		{name: "too bright", cmd: Brightness(256), wantErr: true},
	}

	for _, tc := range tests {
		err := tc.cmd.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestLEDCommandMergeKeepsUnsetChannels(t *testing.T) {
	base := RGB(10, 20, 30)
	green := 99
	merged := base.Merge(LEDCommand{Green: &green})

	if *merged.Red != 10 || *merged.Green != 99 || *merged.Blue != 30 {
		t.Fatalf("unexpected merge result: r=%d g=%d b=%d", *merged.Red, *merged.Green, *merged.Blue)
	}
	if merged.Brightness != nil {
		t.Fatalf("brightness must stay unset")
	}

	green = 1
	if *merged.Green != 99 {
		t.Fatalf("merge must copy values, not alias them")
	}
}

func TestMapRange(t *testing.T) {
	tests := []struct {
		name                                  string
		value, fromLow, fromHigh, toLow, toHi float64
		want                                  float64
	}{
		{name: "canvas midpoint", value: 512, fromLow: 0, fromHigh: 1024, toLow: 0, toHi: 512, want: 256},
		{name: "inverted target", value: 0, fromLow: 0, fromHigh: 10, toLow: 100, toHi: 0, want: 100},
		{name: "no clamping", value: 20, fromLow: 0, fromHigh: 10, toLow: 0, toHi: 1, want: 2},
		{name: "zero width source", value: 5, fromLow: 3, fromHigh: 3, toLow: 7, toHi: 9, want: 7},
	}

	for _, tc := range tests {
		if got := MapRange(tc.value, tc.fromLow, tc.fromHigh, tc.toLow, tc.toHi); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestAxisToLEDClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{in: 0, want: 0},
		{in: 1023, want: 255},
		{in: 2000, want: 255},
		{in: -5, want: 0},
		{in: 511.5, want: 128},
	}

	for _, tc := range tests {
		if got := AxisToLED(tc.in); got != tc.want {
			t.Fatalf("AxisToLED(%v): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
