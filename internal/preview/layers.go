// Package preview derives per-layer statistics from a G-code program and
// renders them as an HTML chart or a PNG toolpath plot.
package preview

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/hexslice/internal/domain"
)

// LayerStats summarises the moves made at one Z height.
type LayerStats struct {
	Index     int     // zero-based, counting only layers that extrude
	Z         float64 // mm
	Moves     int     // G0/G1 commands issued at this height
	Extrusion float64 // mm of filament pushed
	Printed   float64 // mm of XY path covered while extruding
	Travel    float64 // mm of XY path covered without extruding
}

type segment struct {
	x0, y0, x1, y1 float64
	extruding      bool
}

type layer struct {
	stats LayerStats
	segs  []segment
}

const zEpsilon = 1e-6

// Layers walks g and returns statistics for every layer that extrudes.
// Travel-only heights such as the final park lift are omitted.
func Layers(g domain.GCode) []LayerStats {
	layers := trace(g)
	stats := make([]LayerStats, len(layers))
	for i, l := range layers {
		stats[i] = l.stats
	}
	return stats
}

// machine tracks the position state the walker needs.
type machine struct {
	x, y, z, e float64
	relXYZ     bool
	relE       bool
}

func trace(g domain.GCode) []layer {
	var (
		m       machine
		layers  []layer
		current = &layer{}
	)
	flush := func() {
		if current.stats.Extrusion > 0 {
			current.stats.Index = len(layers)
			layers = append(layers, *current)
		}
	}

	for _, c := range g.Commands {
		switch strings.ToUpper(c.Mnemonic) {
		case "G90":
			m.relXYZ = false
		case "G91":
			m.relXYZ = true
		case "M82":
			m.relE = false
		case "M83":
			m.relE = true
		case "G92":
			if v, ok := param(c, "E"); ok {
				m.e = v
			}
			if v, ok := param(c, "X"); ok {
				m.x = v
			}
			if v, ok := param(c, "Y"); ok {
				m.y = v
			}
			if v, ok := param(c, "Z"); ok {
				m.z = v
			}
		case "G28":
			homeAll := true
			for _, axis := range []string{"X", "Y", "Z"} {
				if _, ok := c.Param(axis); ok {
					homeAll = false
				}
			}
			for _, axis := range []string{"X", "Y", "Z"} {
				if _, ok := c.Param(axis); !ok && !homeAll {
					continue
				}
				switch axis {
				case "X":
					m.x = 0
				case "Y":
					m.y = 0
				case "Z":
					m.z = 0
				}
			}
		case "G0", "G1":
			nx, ny, nz := m.target(c)
			ne := m.e
			if v, ok := param(c, "E"); ok {
				if m.relE {
					ne = m.e + v
				} else {
					ne = v
				}
			}

			if math.Abs(nz-m.z) > zEpsilon {
				flush()
				current = &layer{stats: LayerStats{Z: nz}}
			}

			de := ne - m.e
			dist := math.Hypot(nx-m.x, ny-m.y)
			current.stats.Moves++
			switch {
			case de > 0 && dist > 0:
				current.stats.Extrusion += de
				current.stats.Printed += dist
				current.segs = append(current.segs, segment{m.x, m.y, nx, ny, true})
			case dist > 0:
				current.stats.Travel += dist
				current.segs = append(current.segs, segment{m.x, m.y, nx, ny, false})
			case de > 0:
				current.stats.Extrusion += de
			}
			m.x, m.y, m.z, m.e = nx, ny, nz, ne
		}
	}
	flush()
	return layers
}

func (m *machine) target(c domain.Command) (x, y, z float64) {
	x, y, z = m.x, m.y, m.z
	axes := []struct {
		key string
		cur float64
		out *float64
	}{{"X", m.x, &x}, {"Y", m.y, &y}, {"Z", m.z, &z}}
	for _, a := range axes {
		v, ok := param(c, a.key)
		if !ok {
			continue
		}
		if m.relXYZ {
			*a.out = a.cur + v
		} else {
			*a.out = v
		}
	}
	return x, y, z
}

func param(c domain.Command, key string) (float64, bool) {
	s, ok := c.Param(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
