package device

import (
	"fmt"
	"strings"

	"github.com/skobkin/joylink/internal/domain"
)

// ReactionMode selects how the service answers incoming readings.
type ReactionMode string

const (
	ReactionNone            ReactionMode = "none"
	ReactionColorOnPress    ReactionMode = "color_on_press"
	ReactionBrightnessFromX ReactionMode = "brightness_from_x"
)

func ParseReactionMode(raw string) (ReactionMode, error) {
	switch mode := ReactionMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "", ReactionNone:
		return ReactionNone, nil
	case ReactionColorOnPress, ReactionBrightnessFromX:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown reaction mode %q", raw)
	}
}

// Reaction turns a reading into an optional outbound update.
type Reaction struct {
	Mode  ReactionMode
	Color domain.LEDCommand

	lastBrightness *int
}

// Next returns the update to send for r, or false when nothing should be sent.
// Brightness is only re-sent when the mapped level changes.
func (rc *Reaction) Next(r domain.JoystickReading) (domain.LEDCommand, bool) {
	switch rc.Mode {
	case ReactionColorOnPress:
		if !r.Pressed || rc.Color.IsEmpty() {
			return domain.LEDCommand{}, false
		}

		return rc.Color.Clone(), true
	case ReactionBrightnessFromX:
		level := domain.AxisToLED(r.X)
		if rc.lastBrightness != nil && *rc.lastBrightness == level {
			return domain.LEDCommand{}, false
		}
		rc.lastBrightness = &level

		return domain.Brightness(level), true
	default:
		return domain.LEDCommand{}, false
	}
}
