// Package plugins composes the built-in providers into a registry and
// builds an orchestrator from them.
package plugins

import (
	"errors"
	"time"

	"github.com/banshee-data/hexslice/internal/db"
	"github.com/banshee-data/hexslice/internal/device"
	"github.com/banshee-data/hexslice/internal/fsutil"
	"github.com/banshee-data/hexslice/internal/modelstore"
	"github.com/banshee-data/hexslice/internal/output"
	"github.com/banshee-data/hexslice/internal/pipeline"
	"github.com/banshee-data/hexslice/internal/registry"
	"github.com/banshee-data/hexslice/internal/slicer"
)

// Options selects how the built-ins are constructed.
type Options struct {
	// FS backs model loading and G-code writing; nil means the OS.
	FS          fsutil.FileSystem
	Slicer      slicer.Options
	Serial      device.PortOptions
	AckTimeout  time.Duration
	AllowedDirs []string
	// HistoryPath is the sqlite file for run history and printer
	// profiles; empty disables history.
	HistoryPath string
	// RequireHistory makes a history database that cannot be opened an
	// error instead of a warning.
	RequireHistory bool
	// Dialer overrides the default device dialer, mainly for tests.
	Dialer *device.Dialer
}

// Builtins holds the providers RegisterBuiltins created.
type Builtins struct {
	Models *modelstore.Store
	Slicer *slicer.Planar
	Output *output.Delivery
	// History is nil when history is disabled or could not be opened.
	History *db.Provider
}

// BuiltinIDs lists the provider ids RegisterBuiltins may register, in
// registration order.
func BuiltinIDs() []string {
	return []string{db.ProviderID, modelstore.ProviderID, slicer.ProviderID, output.ProviderID}
}

// RegisterBuiltins creates the built-in providers and registers them with r.
// Unless RequireHistory is set, a history database that cannot be opened is
// reported on the ops stream and left out. Any other registration failure unregisters what this call
// already added and returns the error.
func RegisterBuiltins(r *registry.Registry, o Options) (*Builtins, error) {
	b := &Builtins{}
	var added []string
	fail := func(err error) (*Builtins, error) {
		var errs []error
		errs = append(errs, err)
		for i := len(added) - 1; i >= 0; i-- {
			if uerr := r.Unregister(added[i]); uerr != nil {
				errs = append(errs, uerr)
			}
		}
		return nil, errors.Join(errs...)
	}

	if o.HistoryPath != "" {
		h := db.NewProvider(o.HistoryPath)
		if err := r.Register(h); err != nil {
			if o.RequireHistory {
				return nil, err
			}
			opsf("run history disabled: %v", err)
		} else {
			b.History = h
			added = append(added, h.ID())
		}
	}

	b.Models = modelstore.New(o.FS)
	if err := r.Register(b.Models); err != nil {
		return fail(err)
	}
	added = append(added, b.Models.ID())

	b.Slicer = slicer.NewPlanar(o.Slicer)
	if err := r.Register(b.Slicer); err != nil {
		return fail(err)
	}
	added = append(added, b.Slicer.ID())

	dialer := o.Dialer
	if dialer == nil {
		dialer = device.NewDialer()
	}
	dialer.SerialDefaults = o.Serial
	streamer := device.NewStreamer(dialer)
	if o.AckTimeout > 0 {
		streamer.AckTimeout = o.AckTimeout
	}
	opts := []output.Option{output.WithAllowedDirs(o.AllowedDirs)}
	if b.History != nil {
		opts = append(opts, output.WithResolver(b.History))
	}
	b.Output = output.New(o.FS, streamer, opts...)
	if err := r.Register(b.Output); err != nil {
		return fail(err)
	}
	return b, nil
}

// Orchestrator builds a pipeline over the built-ins, recording runs to the
// history store when one is open.
func (b *Builtins) Orchestrator(opts ...pipeline.Option) *pipeline.Orchestrator {
	if b.History != nil {
		opts = append([]pipeline.Option{pipeline.WithRecorder(b.History)}, opts...)
	}
	return pipeline.New(b.Models, b.Slicer, b.Output, opts...)
}
