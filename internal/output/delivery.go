// Package output is the built-in output delivery capability. It writes
// rendered G-code to files and streams it to printers through the device
// package.
package output

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/hexslice/internal/device"
	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/fsutil"
	"github.com/banshee-data/hexslice/internal/security"
)

// ProviderID identifies the output provider in the registry.
const ProviderID = "hexslice.output.device"

// Resolver maps a printer profile name onto a connection target. ok is
// false when name is not a known profile.
type Resolver interface {
	ResolveTarget(ctx context.Context, name string) (target string, ok bool, err error)
}

// Delivery implements ports.Output and registry.Provider.
type Delivery struct {
	fs          fsutil.FileSystem
	streamer    *device.Streamer
	resolver    Resolver
	allowedDirs []string
}

// Option configures a Delivery.
type Option func(*Delivery)

// WithAllowedDirs restricts Persist to paths inside dirs.
func WithAllowedDirs(dirs []string) Option {
	return func(d *Delivery) { d.allowedDirs = append([]string(nil), dirs...) }
}

// WithResolver lets Stream accept printer profile names.
func WithResolver(r Resolver) Option {
	return func(d *Delivery) { d.resolver = r }
}

// New returns a Delivery writing through fsys (nil means the real
// filesystem) and streaming through s (nil means a default streamer).
func New(fsys fsutil.FileSystem, s *device.Streamer, opts ...Option) *Delivery {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if s == nil {
		s = device.NewStreamer(device.NewDialer())
	}
	d := &Delivery{fs: fsys, streamer: s}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Delivery) ID() string      { return ProviderID }
func (d *Delivery) Name() string    { return "File and device output" }
func (d *Delivery) Version() string { return "1.0.0" }

// Initialize lets the dialer open devices again after a Shutdown.
func (d *Delivery) Initialize() error {
	d.streamer.Dialer.Reopen()
	return nil
}

// Shutdown stops the dialer from opening further devices.
func (d *Delivery) Shutdown() error {
	return d.streamer.Dialer.Close()
}

// Render returns the program's text.
func (d *Delivery) Render(g domain.GCode) string {
	return g.Content()
}

// Persist writes the rendered program to path, replacing any existing file.
func (d *Delivery) Persist(ctx context.Context, g domain.GCode, path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ErrMissingOutput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := security.ValidatePathWithinAllowedDirs(path, d.allowedDirs); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := d.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	text := d.Render(g)
	if err := d.fs.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	diagf("wrote %d commands (%d bytes) to %s", g.Len(), len(text), path)
	return nil
}

// Stream delivers g to target, a connection target or printer profile name.
func (d *Delivery) Stream(ctx context.Context, g domain.GCode, target string, realTime bool) error {
	raw := strings.TrimSpace(target)
	if raw == "" {
		return &domain.MissingConnectionError{}
	}

	if d.resolver != nil {
		resolved, ok, err := d.resolver.ResolveTarget(ctx, raw)
		if err != nil {
			return fmt.Errorf("resolve printer %q: %w", raw, err)
		}
		if ok {
			diagf("printer %q resolved to %s", raw, resolved)
			raw = resolved
		}
	}

	t, err := device.ParseTarget(raw)
	if err != nil {
		return err
	}
	return d.streamer.Deliver(ctx, t, g, device.ModeFor(realTime))
}
