package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	LEDMin = 0
	LEDMax = 255
)

// JoystickReading is one telemetry record sent by the peripheral.
type JoystickReading struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Pressed    bool      `json:"pressed"`
	ReceivedAt time.Time `json:"received_at"`
}

// LEDCommand is the outbound record. Only the channels that are set are sent,
// so the same type covers both the RGB and the brightness sketches.
type LEDCommand struct {
	Red        *int `json:"red,omitempty"`
	Green      *int `json:"green,omitempty"`
	Blue       *int `json:"blue,omitempty"`
	Brightness *int `json:"brightness,omitempty"`
}

func RGB(red, green, blue int) LEDCommand {
	return LEDCommand{Red: &red, Green: &green, Blue: &blue}
}

func Brightness(level int) LEDCommand {
	return LEDCommand{Brightness: &level}
}

func (c LEDCommand) IsEmpty() bool {
	return c.Red == nil && c.Green == nil && c.Blue == nil && c.Brightness == nil
}

func (c LEDCommand) Validate() error {
	if c.IsEmpty() {
		return errors.New("led command has no channels set")
	}
	for _, ch := range []struct {
		name  string
		value *int
	}{
		{"red", c.Red},
		{"green", c.Green},
		{"blue", c.Blue},
		{"brightness", c.Brightness},
	} {
		if ch.value == nil {
			continue
		}
		if *ch.value < LEDMin || *ch.value > LEDMax {
			return fmt.Errorf("%s out of range %d..%d: %d", ch.name, LEDMin, LEDMax, *ch.value)
		}
	}

	return nil
}

// Merge overlays the channels set in update onto c.
func (c LEDCommand) Merge(update LEDCommand) LEDCommand {
	if update.Red != nil {
		c.Red = intPtr(*update.Red)
	}
	if update.Green != nil {
		c.Green = intPtr(*update.Green)
	}
	if update.Blue != nil {
		c.Blue = intPtr(*update.Blue)
	}
	if update.Brightness != nil {
		c.Brightness = intPtr(*update.Brightness)
	}

	return c
}

// Clone returns a copy that shares no pointers with c.
func (c LEDCommand) Clone() LEDCommand {
	return LEDCommand{}.Merge(c)
}

// SentCommand records an outbound line after it was written.
type SentCommand struct {
	Command LEDCommand
	Payload string
	SentAt  time.Time
}

func intPtr(v int) *int {
	return &v
}
