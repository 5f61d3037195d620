package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hexslice/internal/device"
	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/fsutil"
	"github.com/banshee-data/hexslice/internal/ports"
	"github.com/banshee-data/hexslice/internal/security"
)

var _ ports.Output = (*Delivery)(nil)

func sample() domain.GCode {
	return domain.NewGCode(domain.Marlin, []domain.Command{
		domain.Cmd("G28").WithComment("Home all axes"),
		domain.Cmd("G1", "X", "10", "Y", "10", "F", "3600"),
	})
}

type mapResolver map[string]string

func (m mapResolver) ResolveTarget(_ context.Context, name string) (string, bool, error) {
	t, ok := m[name]
	return t, ok, nil
}

func TestRender(t *testing.T) {
	d := New(fsutil.NewMemoryFileSystem(), nil)
	assert.Equal(t, "G28  ; Home all axes\nG1 X10 Y10 F3600", d.Render(sample()))
}

func TestPersist(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	d := New(mem, nil)

	require.NoError(t, d.Persist(context.Background(), sample(), "out/cube.gcode"))
	got, err := mem.ReadFile("out/cube.gcode")
	require.NoError(t, err)
	assert.Equal(t, d.Render(sample()), string(got))

	// overwrite
	short := domain.NewGCode(domain.Marlin, []domain.Command{domain.Cmd("M84")})
	require.NoError(t, d.Persist(context.Background(), short, "out/cube.gcode"))
	got, _ = mem.ReadFile("out/cube.gcode")
	assert.Equal(t, "M84", string(got))

	assert.ErrorIs(t, d.Persist(context.Background(), sample(), " "), domain.ErrMissingOutput)
}

func TestPersistAllowedDirs(t *testing.T) {
	allowed := t.TempDir()
	d := New(nil, nil, WithAllowedDirs([]string{allowed}))

	inside := filepath.Join(allowed, "parts", "cube.gcode")
	require.NoError(t, d.Persist(context.Background(), sample(), inside))
	data, err := os.ReadFile(inside)
	require.NoError(t, err)
	assert.Contains(t, string(data), "G28")

	outside := filepath.Join(t.TempDir(), "cube.gcode")
	err = d.Persist(context.Background(), sample(), outside)
	assert.ErrorIs(t, err, security.ErrOutsideAllowedDirs)
	_, statErr := os.Stat(outside)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestStreamMissingTarget(t *testing.T) {
	d := New(nil, nil)
	err := d.Stream(context.Background(), sample(), "  ", true)
	assert.ErrorIs(t, err, domain.ErrMissingConnection)
}

func TestStreamToSimulator(t *testing.T) {
	sim := device.NewSimulatedPrinter(device.SimConfig{FailAt: -1})
	dialer := device.NewDialer()
	dialer.SetOpener(device.SchemeSim, func(context.Context, device.Target) (device.Port, error) { return sim, nil })
	d := New(nil, device.NewStreamer(dialer), WithResolver(mapResolver{"bench": "sim://bench"}))

	require.NoError(t, d.Stream(context.Background(), sample(), "bench", true))
	assert.Equal(t, []string{"G28  ; Home all axes", "G1 X10 Y10 F3600"}, sim.Lines())
}

func TestStreamFailureCarriesPartialCount(t *testing.T) {
	d := New(nil, nil)
	err := d.Stream(context.Background(), sample(), "sim://bench?fail_at=1", true)
	var se *device.StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.PartialCount)
}

func TestStreamBadTarget(t *testing.T) {
	d := New(nil, nil, WithResolver(mapResolver{}))
	err := d.Stream(context.Background(), sample(), "ftp://printer", false)
	assert.ErrorIs(t, err, device.ErrUnknownScheme)
}

func TestShutdownClosesDialer(t *testing.T) {
	d := New(nil, nil)
	require.NoError(t, d.Shutdown())
	err := d.Stream(context.Background(), sample(), "sim://x", false)
	assert.ErrorIs(t, err, device.ErrDialerClosed)
	assert.Equal(t, ProviderID, d.ID())

	require.NoError(t, d.Initialize())
	assert.NoError(t, d.Stream(context.Background(), sample(), "sim://x", false))
}
