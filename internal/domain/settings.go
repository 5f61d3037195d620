package domain

import (
	"fmt"
	"strings"
)

// InfillPattern selects the sparse fill used inside perimeters.
type InfillPattern int

const (
	Grid InfillPattern = iota
	Triangles
	Honeycomb
	Cubic
	Gyroid
	Lines
	Concentric
)

var infillPatternNames = []string{"grid", "triangles", "honeycomb", "cubic", "gyroid", "lines", "concentric"}

func (p InfillPattern) String() string {
	if int(p) < 0 || int(p) >= len(infillPatternNames) {
		return "unknown"
	}
	return infillPatternNames[p]
}

// ParseInfillPattern parses a pattern name case-insensitively.
func ParseInfillPattern(s string) (InfillPattern, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range infillPatternNames {
		if n == name {
			return InfillPattern(i), nil
		}
	}
	return 0, fmt.Errorf("unknown infill pattern %q: expected one of %s", s, strings.Join(infillPatternNames, ", "))
}

// SlicerSettings are the parameters handed to the slicing capability.
// Lengths are millimetres, angles degrees, temperatures Celsius.
type SlicerSettings struct {
	LayerHeight      float64       `json:"layer_height"`
	WallCount        int           `json:"wall_count"`
	InfillDensity    float64       `json:"infill_density"`
	InfillPattern    InfillPattern `json:"infill_pattern"`
	GenerateSupport  bool          `json:"generate_support"`
	SupportAngle     float64       `json:"support_angle"`
	PrintTemperature float64       `json:"print_temperature"`
	PrintSpeed       float64       `json:"print_speed"`
}

// DefaultSettings returns the baseline settings used when nothing else is
// specified.
func DefaultSettings() SlicerSettings {
	return SlicerSettings{
		LayerHeight:      0.2,
		WallCount:        3,
		InfillDensity:    0.2,
		InfillPattern:    Grid,
		GenerateSupport:  false,
		SupportAngle:     45,
		PrintTemperature: 200,
		PrintSpeed:       60,
	}
}

// Validate checks every field against its allowed range.
func (s SlicerSettings) Validate() error {
	if !(s.LayerHeight > 0) {
		return fmt.Errorf("layer height must be positive, got %g", s.LayerHeight)
	}
	if s.WallCount < 0 {
		return fmt.Errorf("wall count must be non-negative, got %d", s.WallCount)
	}
	if !(s.InfillDensity >= 0 && s.InfillDensity <= 1) {
		return fmt.Errorf("infill density must be between 0 and 1, got %g", s.InfillDensity)
	}
	if s.InfillPattern < Grid || s.InfillPattern > Concentric {
		return fmt.Errorf("invalid infill pattern %d", s.InfillPattern)
	}
	if !(s.SupportAngle >= 0 && s.SupportAngle <= 90) {
		return fmt.Errorf("support angle must be between 0 and 90 degrees, got %g", s.SupportAngle)
	}
	if !(s.PrintSpeed > 0) {
		return fmt.Errorf("print speed must be positive, got %g", s.PrintSpeed)
	}
	return nil
}

// SettingsChoice is either an explicit set of settings or a request for the
// slicing capability's defaults for the model being sliced. The zero value
// requests defaults.
type SettingsChoice struct {
	settings SlicerSettings
	explicit bool
}

// UseDefaults requests the slicing capability's type-dependent defaults.
func UseDefaults() SettingsChoice { return SettingsChoice{} }

// Explicit wraps caller-supplied settings.
func Explicit(s SlicerSettings) SettingsChoice {
	return SettingsChoice{settings: s, explicit: true}
}

// IsExplicit reports whether the caller supplied settings.
func (c SettingsChoice) IsExplicit() bool { return c.explicit }

// Resolve returns the explicit settings, or the result of defaults when none
// were supplied. defaults is not called for explicit choices.
func (c SettingsChoice) Resolve(defaults func() SlicerSettings) SlicerSettings {
	if c.explicit {
		return c.settings
	}
	return defaults()
}

// Source names where the effective settings come from, for logs and run
// records.
func (c SettingsChoice) Source() string {
	if c.explicit {
		return "explicit"
	}
	return "default"
}
