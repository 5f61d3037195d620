package slicer

import (
	"math"
	"strconv"

	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/units"
)

// rect is an axis-aligned region on the bed.
type rect struct {
	x0, y0, x1, y1 float64
}

func (r rect) inset(d float64) (rect, bool) {
	out := rect{r.x0 + d, r.y0 + d, r.x1 - d, r.y1 - d}
	return out, out.x1-out.x0 > 1e-9 && out.y1-out.y0 > 1e-9
}

// toolpath accumulates commands and tracks the absolute extruder position.
type toolpath struct {
	opts    Options
	s       domain.SlicerSettings
	cmds    []domain.Command
	x, y, e float64
	layerH  float64
	printF  string
	travelF string
	zF      string
	lastZ   float64
	spacing float64
}

func newToolpath(opts Options, s domain.SlicerSettings) *toolpath {
	tp := &toolpath{
		opts:    opts,
		s:       s,
		printF:  units.FormatFeed(s.PrintSpeed),
		travelF: units.FormatFeed(travelSpeed),
		zF:      units.FormatFeed(zSpeed),
	}
	if s.InfillDensity > 0 {
		tp.spacing = opts.LineWidth / s.InfillDensity
	}
	return tp
}

func (tp *toolpath) emit(c domain.Command) {
	tp.cmds = append(tp.cmds, c)
}

func (tp *toolpath) startSequence() {
	bed := units.FormatTemperature(tp.opts.BedTemperature)
	nozzle := units.FormatTemperature(tp.s.PrintTemperature)
	tp.emit(domain.Cmd("M140", "S", bed).WithComment("Set bed temperature"))
	tp.emit(domain.Cmd("M190", "S", bed).WithComment("Wait for bed temperature"))
	tp.emit(domain.Cmd("M104", "S", nozzle).WithComment("Set nozzle temperature"))
	tp.emit(domain.Cmd("M109", "S", nozzle).WithComment("Wait for nozzle temperature"))
	tp.emit(domain.Cmd("G21").WithComment("Millimetre units"))
	tp.emit(domain.Cmd("G90").WithComment("Absolute positioning"))
	tp.emit(domain.Cmd("M82").WithComment("Absolute extrusion"))
	tp.emit(domain.Cmd("G28").WithComment("Home all axes"))
	tp.emit(domain.Cmd("G92", "E", "0").WithComment("Reset extruder"))
}

func (tp *toolpath) endSequence(top float64) {
	tp.emit(domain.Cmd("G1", "Z", units.FormatCoord(top+parkLift), "F", tp.zF).WithComment("Lift nozzle"))
	tp.emit(domain.Cmd("G0", "X", "0", "Y", units.FormatCoord(tp.opts.BuildVolume.Y), "F", tp.travelF).WithComment("Park"))
	tp.emit(domain.Cmd("M104", "S", "0").WithComment("Nozzle heater off"))
	tp.emit(domain.Cmd("M140", "S", "0").WithComment("Bed heater off"))
	tp.emit(domain.Cmd("M107").WithComment("Fan off"))
	tp.emit(domain.Cmd("M84").WithComment("Disable motors"))
}

func (tp *toolpath) travel(x, y float64) {
	tp.emit(domain.Cmd("G0", "X", units.FormatCoord(x), "Y", units.FormatCoord(y), "F", tp.travelF))
	tp.x, tp.y = x, y
}

func (tp *toolpath) extrude(x, y float64) {
	dist := math.Hypot(x-tp.x, y-tp.y)
	tp.e += units.FilamentLength(tp.opts.LineWidth, tp.layerH, dist, tp.opts.FilamentDiameter)
	tp.emit(domain.Cmd("G1",
		"X", units.FormatCoord(x),
		"Y", units.FormatCoord(y),
		"E", units.FormatExtrusion(tp.e),
		"F", tp.printF))
	tp.x, tp.y = x, y
}

func (tp *toolpath) loop(r rect) {
	tp.travel(r.x0, r.y0)
	tp.extrude(r.x1, r.y0)
	tp.extrude(r.x1, r.y1)
	tp.extrude(r.x0, r.y1)
	tp.extrude(r.x0, r.y0)
}

// layer emits one layer at height z over the footprint fp.
func (tp *toolpath) layer(index int, z float64, fp rect) {
	tp.layerH = z - tp.lastZ
	tp.lastZ = z
	tp.emit(domain.Cmd("G1", "Z", units.FormatCoord(z), "F", tp.zF).
		WithComment("Layer " + strconv.Itoa(index+1)))

	lw := tp.opts.LineWidth
	for w := 0; w < tp.s.WallCount; w++ {
		r, ok := fp.inset(lw/2 + float64(w)*lw)
		if !ok {
			break
		}
		tp.loop(r)
	}

	if tp.spacing == 0 {
		return
	}
	inner, ok := fp.inset(float64(tp.s.WallCount) * lw)
	if !ok {
		return
	}
	switch tp.s.InfillPattern {
	case domain.Lines, domain.Gyroid, domain.Honeycomb:
		tp.hatch(inner, index%2 == 0)
	case domain.Grid, domain.Cubic, domain.Triangles:
		tp.hatch(inner, true)
		tp.hatch(inner, false)
	case domain.Concentric:
		for d := tp.spacing / 2; ; d += tp.spacing {
			r, ok := inner.inset(d)
			if !ok {
				break
			}
			tp.loop(r)
		}
	}
}

// hatch fills r with parallel lines spaced by the infill spacing, running
// along X when alongX is set and along Y otherwise. Lines alternate
// direction to keep travel short.
func (tp *toolpath) hatch(r rect, alongX bool) {
	lo, hi := r.y0, r.y1
	if !alongX {
		lo, hi = r.x0, r.x1
	}
	forward := true
	for c := lo + tp.spacing/2; c <= hi+1e-9; c += tp.spacing {
		switch {
		case alongX && forward:
			tp.travel(r.x0, c)
			tp.extrude(r.x1, c)
		case alongX:
			tp.travel(r.x1, c)
			tp.extrude(r.x0, c)
		case forward:
			tp.travel(c, r.y0)
			tp.extrude(c, r.y1)
		default:
			tp.travel(c, r.y1)
			tp.extrude(c, r.y0)
		}
		forward = !forward
	}
}
