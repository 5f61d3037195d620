// Package units provides the unit conversions and number formatting used
// when emitting G-code. Lengths are millimetres throughout.
package units

import (
	"math"
	"strconv"
)

// Coordinate and extrusion precisions used in emitted G-code.
const (
	CoordDecimals     = 3
	ExtrusionDecimals = 5
)

// Standard filament diameters in millimetres.
const (
	Filament175 = 1.75
	Filament285 = 2.85
)

// FeedRate converts a speed in mm/s to the mm/min used by G-code F words.
func FeedRate(mmPerSecond float64) float64 {
	return mmPerSecond * 60
}

// FormatFeed renders a feed rate in mm/s as a whole-number mm/min string.
func FormatFeed(mmPerSecond float64) string {
	return strconv.FormatFloat(math.Round(FeedRate(mmPerSecond)), 'f', -1, 64)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // avoid "-0"
	}
	return r
}

// FormatCoord renders a coordinate with at most CoordDecimals places and no
// trailing zeros: 10 -> "10", 0.30000000004 -> "0.3".
func FormatCoord(v float64) string {
	return strconv.FormatFloat(Round(v, CoordDecimals), 'f', -1, 64)
}

// FormatExtrusion renders an extruder position with ExtrusionDecimals places
// and no trailing zeros.
func FormatExtrusion(v float64) string {
	return strconv.FormatFloat(Round(v, ExtrusionDecimals), 'f', -1, 64)
}

// FormatTemperature renders a temperature in whole degrees.
func FormatTemperature(celsius float64) string {
	return strconv.FormatFloat(math.Round(celsius), 'f', -1, 64)
}

// FilamentLength returns the length of filament (diameter filamentDiameter)
// needed to lay a bead of the given width, height and length.
func FilamentLength(width, height, length, filamentDiameter float64) float64 {
	if filamentDiameter <= 0 {
		return 0
	}
	r := filamentDiameter / 2
	return width * height * length / (math.Pi * r * r)
}
