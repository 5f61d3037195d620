// Package pipeline sequences a model through loading, validation, slicing
// and delivery. It depends only on the capability ports; providers are
// injected at construction.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/ports"
	"github.com/banshee-data/hexslice/internal/timeutil"
)

// Orchestrator runs the slice and stream pipelines. It holds no per-run
// state, so one Orchestrator may serve concurrent runs.
type Orchestrator struct {
	models   ports.ModelAccess
	slicer   ports.Slicer
	out      ports.Output
	recorder RunRecorder
	clock    timeutil.Clock
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder hands every finished run to r.
func WithRecorder(r RunRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock sets the clock used for run timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New returns an orchestrator over the three capabilities.
func New(models ports.ModelAccess, slicer ports.Slicer, out ports.Output, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		models: models,
		slicer: slicer,
		out:    out,
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SliceToFile loads input, slices it and writes the program to output. It
// returns the rendered program as a preview.
func (o *Orchestrator) SliceToFile(ctx context.Context, input, output string, settings domain.SettingsChoice) (preview string, err error) {
	if strings.TrimSpace(output) == "" {
		return "", domain.ErrMissingOutput
	}

	run := o.begin(KindSlice, input, output)
	defer func() { o.finish(ctx, &run, err) }()

	g, err := o.prepare(ctx, &run, input, settings)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := o.out.Persist(ctx, g, output); err != nil {
		return "", err
	}
	return o.out.Render(g), nil
}

// StreamToDevice loads input, slices it and streams the program to target.
func (o *Orchestrator) StreamToDevice(ctx context.Context, input, target string, settings domain.SettingsChoice, realTime bool) (err error) {
	if strings.TrimSpace(target) == "" {
		return &domain.MissingConnectionError{}
	}

	run := o.begin(KindStream, input, target)
	run.RealTime = realTime
	defer func() { o.finish(ctx, &run, err) }()

	g, err := o.prepare(ctx, &run, input, settings)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.out.Stream(ctx, g, target, realTime)
}

// prepare runs the shared steps: load, validate, resolve settings, slice.
func (o *Orchestrator) prepare(ctx context.Context, run *Run, input string, settings domain.SettingsChoice) (domain.GCode, error) {
	m, err := o.models.Load(ctx, input)
	if err != nil {
		return domain.GCode{}, err
	}
	run.ModelType = m.Type.String()
	if err := ctx.Err(); err != nil {
		return domain.GCode{}, err
	}

	if !o.slicer.Validate(ctx, m) {
		return domain.GCode{}, &domain.InvalidModelError{Model: m.Name}
	}
	if err := ctx.Err(); err != nil {
		return domain.GCode{}, err
	}

	effective := settings.Resolve(func() domain.SlicerSettings { return o.slicer.DefaultSettings(m) })
	run.SettingsSource = settings.Source()
	diagf("run %s: %s %s with %s settings (layer %g mm, infill %g, %s)",
		run.ID, run.Kind, m.Name, run.SettingsSource, effective.LayerHeight, effective.InfillDensity, effective.InfillPattern)

	g, err := o.slicer.Slice(ctx, m, effective)
	if err != nil {
		return domain.GCode{}, err
	}
	run.CommandCount = g.Len()
	return g, nil
}

func (o *Orchestrator) begin(kind Kind, input, dest string) Run {
	return Run{
		ID:          uuid.NewString(),
		Kind:        kind,
		Input:       input,
		Destination: dest,
		StartedAt:   o.clock.Now(),
	}
}

// partialReporter is implemented by delivery errors that know how many
// commands the device confirmed.
type partialReporter interface {
	PartialCommands() int
}

func (o *Orchestrator) finish(ctx context.Context, run *Run, err error) {
	run.FinishedAt = o.clock.Now()
	switch {
	case err == nil:
		run.Status = StatusSucceeded
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.Status = StatusCancelled
		run.Error = err.Error()
	default:
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	var pr partialReporter
	if errors.As(err, &pr) {
		run.PartialCount = pr.PartialCommands()
	}

	if err != nil {
		opsf("run %s: %s %s -> %s %s: %v", run.ID, run.Kind, run.Input, run.Destination, run.Status, err)
	} else {
		diagf("run %s: %s %s -> %s in %s (%d commands)", run.ID, run.Kind, run.Input, run.Destination, run.Duration(), run.CommandCount)
	}

	if o.recorder == nil {
		return
	}
	// record even when the run itself was cancelled
	if rerr := o.recorder.RecordRun(context.WithoutCancel(ctx), *run); rerr != nil {
		opsf("run %s: failed to record history: %v", run.ID, rerr)
	}
}
