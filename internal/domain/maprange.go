package domain

import "math"

// Joystick axes report 10-bit ADC values.
const (
	AxisMin = 0
	AxisMax = 1023
)

// MapRange re-maps value from one range to another, like the Arduino map().
// It does not clamp; a zero-width source range maps everything to toLow.
func MapRange(value, fromLow, fromHigh, toLow, toHigh float64) float64 {
	if fromHigh == fromLow {
		return toLow
	}

	return toLow + (toHigh-toLow)*(value-fromLow)/(fromHigh-fromLow)
}

// AxisToLED maps a joystick axis value onto a clamped 0..255 LED level.
func AxisToLED(value float64) int {
	level := math.Round(MapRange(value, AxisMin, AxisMax, LEDMin, LEDMax))
	if level < LEDMin {
		return LEDMin
	}
	if level > LEDMax {
		return LEDMax
	}

	return int(level)
}
