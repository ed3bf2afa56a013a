package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skobkin/joylink/internal/domain"
)

// ErrNotReading marks a well-formed JSON record that does not carry joystick
// fields, such as a status message from the firmware.
var ErrNotReading = errors.New("record is not a joystick reading")

// Codec translates between framed JSON records and domain values.
type Codec interface {
	DecodeReading(raw json.RawMessage) (domain.JoystickReading, error)
	EncodeCommand(cmd domain.LEDCommand) ([]byte, error)
}

// JSONCodec decodes {"x":..,"y":..,"pressed":..} readings and encodes LED commands.
type JSONCodec struct {
	now func() time.Time
}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{now: time.Now}
}

type wireReading struct {
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Pressed *bool    `json:"pressed"`
}

func (c *JSONCodec) DecodeReading(raw json.RawMessage) (domain.JoystickReading, error) {
	var w wireReading
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.JoystickReading{}, fmt.Errorf("%w: %w", ErrNotReading, err)
	}
	if w.X == nil && w.Y == nil && w.Pressed == nil {
		return domain.JoystickReading{}, fmt.Errorf("%w: no joystick fields", ErrNotReading)
	}

	reading := domain.JoystickReading{ReceivedAt: c.now()}
	if w.X != nil {
		reading.X = *w.X
	}
	if w.Y != nil {
		reading.Y = *w.Y
	}
	if w.Pressed != nil {
		reading.Pressed = *w.Pressed
	}

	return reading, nil
}

func (c *JSONCodec) EncodeCommand(cmd domain.LEDCommand) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode led command: %w", err)
	}

	return payload, nil
}
