// Package ports declares the three capabilities the slicing pipeline depends
// on. Concrete providers live in their own packages and are injected into the
// orchestrator; nothing here knows which provider is in use.
package ports

import (
	"context"

	"github.com/banshee-data/hexslice/internal/domain"
)

// ModelAccess loads and stores 3D models.
type ModelAccess interface {
	// Load reads the model at path. It fails with *domain.UnsupportedFormatError
	// when the extension has no model type and *domain.NotFoundError when the
	// source does not exist.
	Load(ctx context.Context, path string) (domain.Model, error)
	// Save writes m to path.
	Save(ctx context.Context, m domain.Model, path string) error
}

// Slicer turns models into G-code.
type Slicer interface {
	// Validate is the authoritative gate before slicing. It reports false for
	// geometry that cannot be sliced and never returns an error.
	Validate(ctx context.Context, m domain.Model) bool
	// DefaultSettings returns settings suited to m's source format.
	DefaultSettings(m domain.Model) domain.SlicerSettings
	// Slice produces the program for m. Internal geometric failures are
	// reported as *domain.SlicingError. On any error no G-code is returned.
	Slice(ctx context.Context, m domain.Model, s domain.SlicerSettings) (domain.GCode, error)
}

// Output delivers G-code either to a file or to a device.
type Output interface {
	// Persist writes the rendered program to path, overwriting it.
	Persist(ctx context.Context, g domain.GCode, path string) error
	// Stream sends the program to the device named by target. With realTime
	// false the whole program is handed over as one unit; with realTime true
	// commands are sent one at a time, paced by device acknowledgements.
	Stream(ctx context.Context, g domain.GCode, target string, realTime bool) error
	// Render returns the program's text form.
	Render(g domain.GCode) string
}
