// Package slicer provides the built-in slicing capability: a planar slicer
// that turns a model's footprint into layered perimeter and infill
// toolpaths.
package slicer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/meshcheck"
	"github.com/banshee-data/hexslice/internal/units"
)

// ProviderID identifies the planar slicer in the registry.
const ProviderID = "hexslice.slicer.planar"

const (
	minVolume        = 1e-6 // mm^3
	stepLayerHeight  = 0.1
	travelSpeed      = 150.0 // mm/s
	zSpeed           = 10.0  // mm/s
	parkLift         = 5.0   // mm
	stepHeaderPrefix = "ISO-10303-21"
	zipSignature     = "PK\x03\x04"
)

// fallbackFootprint is used for formats whose geometry is not decoded.
var fallbackFootprint = r3.Vec{X: 20, Y: 20, Z: 10}

// Options describe the machine the slicer targets.
type Options struct {
	Flavor           domain.Flavor
	BedTemperature   float64
	BuildVolume      r3.Vec
	LineWidth        float64
	FilamentDiameter float64
}

// DefaultOptions targets a 220 x 220 x 250 Marlin printer with a 0.4 mm
// nozzle and 1.75 mm filament.
func DefaultOptions() Options {
	return Options{
		Flavor:           domain.Marlin,
		BedTemperature:   60,
		BuildVolume:      r3.Vec{X: 220, Y: 220, Z: 250},
		LineWidth:        0.4,
		FilamentDiameter: units.Filament175,
	}
}

func (o Options) validate() error {
	if o.BuildVolume.X <= 0 || o.BuildVolume.Y <= 0 || o.BuildVolume.Z <= 0 {
		return fmt.Errorf("build volume must be positive, got %v", o.BuildVolume)
	}
	if o.LineWidth <= 0 {
		return fmt.Errorf("line width must be positive, got %g", o.LineWidth)
	}
	if o.FilamentDiameter <= 0 {
		return fmt.Errorf("filament diameter must be positive, got %g", o.FilamentDiameter)
	}
	return nil
}

// Planar is a Slicer and registry Provider.
type Planar struct {
	opts Options
}

// NewPlanar returns a planar slicer for the given machine.
func NewPlanar(opts Options) *Planar {
	return &Planar{opts: opts}
}

func (p *Planar) ID() string      { return ProviderID }
func (p *Planar) Name() string    { return "Planar slicer" }
func (p *Planar) Version() string { return "1.0.0" }

// Initialize checks the machine options.
func (p *Planar) Initialize() error {
	if err := p.opts.validate(); err != nil {
		return fmt.Errorf("planar slicer: %w", err)
	}
	return nil
}

func (p *Planar) Shutdown() error { return nil }

// Validate reports whether m can be sliced. It never panics and never
// errors; the reason for a rejection goes to the diag stream.
func (p *Planar) Validate(ctx context.Context, m domain.Model) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			opsf("validate %s: recovered from panic: %v", m.Name, r)
			ok = false
		}
	}()
	if err := p.check(m); err != nil {
		diagf("model %s rejected: %v", m.Name, err)
		return false
	}
	diagf("model %s (%s) accepted", m.Name, m.Type)
	return true
}

func (p *Planar) check(m domain.Model) error {
	if len(m.Payload) == 0 {
		return errors.New("empty payload")
	}
	switch m.Type {
	case domain.STEP:
		if !bytes.HasPrefix(bytes.TrimLeft(m.Payload, " \t\r\n"), []byte(stepHeaderPrefix)) {
			return errors.New("missing ISO-10303-21 header")
		}
		return nil
	case domain.ThreeMF:
		if !bytes.HasPrefix(m.Payload, []byte(zipSignature)) {
			return errors.New("not a zip package")
		}
		return nil
	}

	mesh, err := meshcheck.Decode(m.Type, m.Payload)
	if err != nil {
		return err
	}
	if len(mesh.Triangles) == 0 {
		return errors.New("no triangles")
	}
	if n := mesh.NonManifoldEdges(); n > 0 {
		return fmt.Errorf("%d non-manifold edges", n)
	}
	v := mesh.Volume()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("enclosed volume %g mm^3 is not finite", v)
	}
	if math.Abs(v) < minVolume {
		return fmt.Errorf("enclosed volume %g mm^3 is negligible", v)
	}
	size := mesh.Size()
	if !(size.X >= 0 && size.Y >= 0 && size.Z >= 0) || math.IsInf(size.X+size.Y+size.Z, 0) {
		return fmt.Errorf("extent %vx%vx%v is not finite", size.X, size.Y, size.Z)
	}
	bv := p.opts.BuildVolume
	if size.X > bv.X || size.Y > bv.Y || size.Z > bv.Z {
		return fmt.Errorf("extent %.1fx%.1fx%.1f exceeds build volume %.0fx%.0fx%.0f",
			size.X, size.Y, size.Z, bv.X, bv.Y, bv.Z)
	}
	return nil
}

// DefaultSettings returns the baseline settings with a finer layer height
// for STEP sources.
func (p *Planar) DefaultSettings(m domain.Model) domain.SlicerSettings {
	s := domain.DefaultSettings()
	if m.Type == domain.STEP {
		s.LayerHeight = stepLayerHeight
	}
	return s
}

// Slice generates the program for m. Cancellation of ctx between layers
// returns the context error and no G-code.
func (p *Planar) Slice(ctx context.Context, m domain.Model, s domain.SlicerSettings) (domain.GCode, error) {
	if err := s.Validate(); err != nil {
		return domain.GCode{}, &domain.SlicingError{Model: m.Name, Cause: err}
	}

	size, err := p.footprint(m)
	if err != nil {
		return domain.GCode{}, &domain.SlicingError{Model: m.Name, Cause: err}
	}
	if s.LayerHeight > size.Z {
		return domain.GCode{}, &domain.SlicingError{
			Model: m.Name,
			Cause: fmt.Errorf("layer height %g mm exceeds model height %g mm", s.LayerHeight, size.Z),
		}
	}
	if s.GenerateSupport {
		diagf("%s: support requested (angle %g); prismatic footprint has no overhangs, none generated", m.Name, s.SupportAngle)
	}

	bv := p.opts.BuildVolume
	origin := r3.Vec{X: (bv.X - size.X) / 2, Y: (bv.Y - size.Y) / 2}
	layers := int(math.Ceil(size.Z/s.LayerHeight - 1e-9))
	diagf("slicing %s: %d layers of %g mm, %d walls, %s infill at %g",
		m.Name, layers, s.LayerHeight, s.WallCount, s.InfillPattern, s.InfillDensity)

	tp := newToolpath(p.opts, s)
	tp.startSequence()
	for i := 0; i < layers; i++ {
		if err := ctx.Err(); err != nil {
			opsf("slicing %s cancelled at layer %d/%d", m.Name, i+1, layers)
			return domain.GCode{}, err
		}
		z := math.Min(float64(i+1)*s.LayerHeight, size.Z)
		before := len(tp.cmds)
		tp.layer(i, z, rect{origin.X, origin.Y, origin.X + size.X, origin.Y + size.Y})
		tracef("%s layer %d/%d z=%s commands=%d", m.Name, i+1, layers, units.FormatCoord(z), len(tp.cmds)-before)
	}
	tp.endSequence(size.Z)

	return domain.NewGCode(p.opts.Flavor, tp.cmds), nil
}

// footprint returns the model's extent, or a fixed block for formats whose
// geometry is not decoded.
func (p *Planar) footprint(m domain.Model) (r3.Vec, error) {
	mesh, err := meshcheck.Decode(m.Type, m.Payload)
	if errors.Is(err, meshcheck.ErrNotDecodable) {
		return fallbackFootprint, nil
	}
	if err != nil {
		return r3.Vec{}, err
	}
	if len(mesh.Triangles) == 0 {
		return r3.Vec{}, errors.New("mesh has no triangles")
	}
	size := mesh.Size()
	if size.Z <= 0 {
		return r3.Vec{}, errors.New("mesh has no height")
	}
	return size, nil
}
