package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hexslice/internal/db"
	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/fsutil"
	"github.com/banshee-data/hexslice/internal/pipeline"
	"github.com/banshee-data/hexslice/internal/ports"
	"github.com/banshee-data/hexslice/internal/registry"
	"github.com/banshee-data/hexslice/internal/slicer"
	"github.com/banshee-data/hexslice/internal/testutil"
)

func ids(r *registry.Registry) []string {
	var out []string
	for _, p := range r.All() {
		out = append(out, p.ID())
	}
	return out
}

func TestRegisterBuiltinsWithoutHistory(t *testing.T) {
	r := registry.New()
	b, err := RegisterBuiltins(r, Options{FS: fsutil.NewMemoryFileSystem(), Slicer: slicer.DefaultOptions()})
	require.NoError(t, err)
	assert.Nil(t, b.History)
	assert.Equal(t, BuiltinIDs()[1:], ids(r))

	_, err = registry.Capability[ports.Slicer](r, slicer.ProviderID)
	assert.NoError(t, err)
	require.NoError(t, r.ShutdownAll())
}

func TestRegisterBuiltinsEndToEnd(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.WriteFile("models/cube.stl", testutil.CubeSTL(), 0o644))

	r := registry.New()
	b, err := RegisterBuiltins(r, Options{
		FS:          mem,
		Slicer:      slicer.DefaultOptions(),
		HistoryPath: filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	defer r.ShutdownAll()
	require.NotNil(t, b.History)
	assert.Equal(t, BuiltinIDs(), ids(r))

	ctx := context.Background()
	orch := b.Orchestrator()
	preview, err := orch.SliceToFile(ctx, "models/cube.stl", "out/cube.gcode", domain.UseDefaults())
	require.NoError(t, err)
	assert.NotEmpty(t, preview)

	_, err = b.History.DB().CreatePrinter(ctx, db.Printer{Name: "bench", Target: "sim://bench"})
	require.NoError(t, err)
	require.NoError(t, orch.StreamToDevice(ctx, "models/cube.stl", "bench", domain.UseDefaults(), true))

	runs, err := b.History.DB().RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	kinds := []pipeline.Kind{runs[0].Kind, runs[1].Kind}
	assert.ElementsMatch(t, []pipeline.Kind{pipeline.KindSlice, pipeline.KindStream}, kinds)
	for _, run := range runs {
		assert.Equal(t, pipeline.StatusSucceeded, run.Status)
	}
}

func TestRegisterBuiltinsHistoryFailureIsNotFatal(t *testing.T) {
	// The database's parent "directory" is a regular file.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r := registry.New()
	b, err := RegisterBuiltins(r, Options{Slicer: slicer.DefaultOptions(), HistoryPath: filepath.Join(blocker, "history.db")})
	require.NoError(t, err)
	assert.Nil(t, b.History)
	assert.Equal(t, registry.Unregistered, r.State(db.ProviderID))
	require.NoError(t, r.ShutdownAll())

	r = registry.New()
	_, err = RegisterBuiltins(r, Options{
		Slicer:         slicer.DefaultOptions(),
		HistoryPath:    filepath.Join(blocker, "history.db"),
		RequireHistory: true,
	})
	assert.Error(t, err)
	assert.Zero(t, r.Len())
}

func TestRegisterBuiltinsRollsBack(t *testing.T) {
	r := registry.New()
	opts := slicer.DefaultOptions()
	opts.LineWidth = 0

	_, err := RegisterBuiltins(r, Options{Slicer: opts, HistoryPath: filepath.Join(t.TempDir(), "h.db")})
	require.Error(t, err)
	assert.Zero(t, r.Len())
}

func TestRegisterBuiltinsDuplicate(t *testing.T) {
	r := registry.New()
	_, err := RegisterBuiltins(r, Options{Slicer: slicer.DefaultOptions()})
	require.NoError(t, err)

	_, err = RegisterBuiltins(r, Options{Slicer: slicer.DefaultOptions()})
	assert.ErrorIs(t, err, registry.ErrDuplicateID)
	// The first set is untouched.
	assert.Equal(t, BuiltinIDs()[1:], ids(r))
	for _, id := range ids(r) {
		assert.Equal(t, registry.Active, r.State(id))
	}
}
