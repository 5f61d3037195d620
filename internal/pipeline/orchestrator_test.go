package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hexslice/internal/device"
	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/fsutil"
	"github.com/banshee-data/hexslice/internal/modelstore"
	"github.com/banshee-data/hexslice/internal/output"
	"github.com/banshee-data/hexslice/internal/slicer"
	"github.com/banshee-data/hexslice/internal/testutil"
	"github.com/banshee-data/hexslice/internal/timeutil"
)

// calls records capability invocations in order.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, s)
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

type fakeModels struct {
	calls *calls
	model domain.Model
	err   error
}

func (f *fakeModels) Load(_ context.Context, path string) (domain.Model, error) {
	f.calls.add("load")
	return f.model, f.err
}

func (f *fakeModels) Save(context.Context, domain.Model, string) error {
	f.calls.add("save")
	return nil
}

type fakeSlicer struct {
	calls    *calls
	valid    bool
	defaults domain.SlicerSettings
	got      domain.SlicerSettings
	err      error
}

func (f *fakeSlicer) Validate(context.Context, domain.Model) bool {
	f.calls.add("validate")
	return f.valid
}

func (f *fakeSlicer) DefaultSettings(domain.Model) domain.SlicerSettings {
	f.calls.add("defaults")
	return f.defaults
}

func (f *fakeSlicer) Slice(_ context.Context, m domain.Model, s domain.SlicerSettings) (domain.GCode, error) {
	f.calls.add("slice")
	f.got = s
	if f.err != nil {
		return domain.GCode{}, f.err
	}
	return domain.NewGCode(domain.Marlin, []domain.Command{domain.Cmd("G28"), domain.Cmd("G1", "X", "1")}), nil
}

type fakeOutput struct {
	calls     *calls
	streamErr error
	target    string
	realTime  bool
}

func (f *fakeOutput) Persist(context.Context, domain.GCode, string) error {
	f.calls.add("persist")
	return nil
}

func (f *fakeOutput) Stream(_ context.Context, _ domain.GCode, target string, realTime bool) error {
	f.calls.add("stream")
	f.target, f.realTime = target, realTime
	return f.streamErr
}

func (f *fakeOutput) Render(g domain.GCode) string {
	f.calls.add("render")
	return g.Content()
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []Run
	err  error
}

func (r *fakeRecorder) RecordRun(_ context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func newFakes(valid bool) (*calls, *fakeModels, *fakeSlicer, *fakeOutput) {
	c := &calls{}
	m := &fakeModels{calls: c, model: domain.Model{Name: "cube", Type: domain.STL, Payload: []byte("x")}}
	s := &fakeSlicer{calls: c, valid: valid, defaults: domain.DefaultSettings()}
	o := &fakeOutput{calls: c}
	return c, m, s, o
}

func TestSliceToFileStepOrder(t *testing.T) {
	c, m, s, o := newFakes(true)
	orch := New(m, s, o)

	preview, err := orch.SliceToFile(context.Background(), "cube.stl", "cube.gcode", domain.UseDefaults())
	require.NoError(t, err)
	assert.Equal(t, "G28\nG1 X1", preview)
	assert.Equal(t, []string{"load", "validate", "defaults", "slice", "persist", "render"}, c.list())
}

func TestExplicitSettingsSkipDefaults(t *testing.T) {
	c, m, s, o := newFakes(true)
	orch := New(m, s, o)
	want := domain.DefaultSettings()
	want.LayerHeight = 0.3

	_, err := orch.SliceToFile(context.Background(), "cube.stl", "cube.gcode", domain.Explicit(want))
	require.NoError(t, err)
	assert.Equal(t, want, s.got)
	assert.NotContains(t, c.list(), "defaults")
}

func TestValidationGateNeverSlices(t *testing.T) {
	c, m, s, o := newFakes(false)
	orch := New(m, s, o)

	_, err := orch.SliceToFile(context.Background(), "cube.stl", "cube.gcode", domain.UseDefaults())
	var ie *domain.InvalidModelError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "cube", ie.Model)

	err = orch.StreamToDevice(context.Background(), "cube.stl", "sim://x", domain.UseDefaults(), true)
	assert.ErrorIs(t, err, domain.ErrInvalidModel)

	assert.NotContains(t, c.list(), "slice")
	assert.NotContains(t, c.list(), "persist")
	assert.NotContains(t, c.list(), "stream")
}

func TestStreamEmptyTargetFailsBeforeAnyCapability(t *testing.T) {
	for _, target := range []string{"", "   "} {
		c, m, s, o := newFakes(true)
		rec := &fakeRecorder{}
		orch := New(m, s, o, WithRecorder(rec))

		err := orch.StreamToDevice(context.Background(), "cube.stl", target, domain.UseDefaults(), false)
		var mc *domain.MissingConnectionError
		require.ErrorAs(t, err, &mc)
		assert.Empty(t, c.list())
		assert.Empty(t, rec.runs)
	}
}

func TestSliceEmptyOutputFailsFirst(t *testing.T) {
	c, m, s, o := newFakes(true)
	_, err := New(m, s, o).SliceToFile(context.Background(), "cube.stl", "", domain.UseDefaults())
	assert.ErrorIs(t, err, domain.ErrMissingOutput)
	assert.Empty(t, c.list())
}

func TestFailuresPropagateVerbatim(t *testing.T) {
	c, m, s, o := newFakes(true)
	m.err = &domain.NotFoundError{Path: "gone.stl"}
	_, err := New(m, s, o).SliceToFile(context.Background(), "gone.stl", "out.gcode", domain.UseDefaults())
	assert.Same(t, m.err, err)
	assert.Equal(t, []string{"load"}, c.list())

	c, m, s, o = newFakes(true)
	s.err = &domain.SlicingError{Model: "cube", Cause: errors.New("self-intersecting")}
	_, err = New(m, s, o).SliceToFile(context.Background(), "cube.stl", "out.gcode", domain.UseDefaults())
	assert.ErrorIs(t, err, domain.ErrSlicing)
	assert.NotContains(t, c.list(), "persist")
}

func TestStreamToDevicePassesFlags(t *testing.T) {
	c, m, s, o := newFakes(true)
	require.NoError(t, New(m, s, o).StreamToDevice(context.Background(), "cube.stl", "/dev/ttyUSB0", domain.UseDefaults(), true))
	assert.Equal(t, "/dev/ttyUSB0", o.target)
	assert.True(t, o.realTime)
	assert.Equal(t, []string{"load", "validate", "defaults", "slice", "stream"}, c.list())
}

func TestCancelledBeforeDelivery(t *testing.T) {
	c, m, s, o := newFakes(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &fakeRecorder{}

	_, err := New(m, s, o, WithRecorder(rec)).SliceToFile(ctx, "cube.stl", "out.gcode", domain.UseDefaults())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"load"}, c.list())
	require.Len(t, rec.runs, 1)
	assert.Equal(t, StatusCancelled, rec.runs[0].Status)
}

func TestRunRecording(t *testing.T) {
	_, m, s, o := newFakes(true)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	rec := &fakeRecorder{}
	orch := New(m, s, o, WithRecorder(rec), WithClock(clock))

	_, err := orch.SliceToFile(context.Background(), "cube.stl", "cube.gcode", domain.UseDefaults())
	require.NoError(t, err)

	o.streamErr = &device.StreamError{Target: "sim://x", Mode: device.RealTime, State: device.Failed, PartialCount: 7, Err: errors.New("halt")}
	err = orch.StreamToDevice(context.Background(), "cube.stl", "sim://x", domain.Explicit(domain.DefaultSettings()), true)
	require.Error(t, err)

	require.Len(t, rec.runs, 2)
	ok, failed := rec.runs[0], rec.runs[1]

	_, perr := uuid.Parse(ok.ID)
	assert.NoError(t, perr)
	assert.NotEqual(t, ok.ID, failed.ID)
	assert.Equal(t, KindSlice, ok.Kind)
	assert.Equal(t, "cube.gcode", ok.Destination)
	assert.Equal(t, "STL", strings.ToUpper(ok.ModelType))
	assert.Equal(t, "default", ok.SettingsSource)
	assert.Equal(t, 2, ok.CommandCount)
	assert.Equal(t, StatusSucceeded, ok.Status)
	assert.Equal(t, start, ok.StartedAt)
	assert.Zero(t, ok.Duration())

	assert.Equal(t, KindStream, failed.Kind)
	assert.True(t, failed.RealTime)
	assert.Equal(t, "explicit", failed.SettingsSource)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, 7, failed.PartialCount)
	assert.Contains(t, failed.Error, "halt")
}

func TestRecorderFailureDoesNotChangeResult(t *testing.T) {
	_, m, s, o := newFakes(true)
	rec := &fakeRecorder{err: errors.New("disk full")}
	preview, err := New(m, s, o, WithRecorder(rec)).SliceToFile(context.Background(), "cube.stl", "cube.gcode", domain.UseDefaults())
	require.NoError(t, err)
	assert.NotEmpty(t, preview)
	assert.Len(t, rec.runs, 1)
}

// Integration with the built-in providers.

func builtins(t *testing.T) (*Orchestrator, *fsutil.MemoryFileSystem) {
	t.Helper()
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.WriteFile("models/cube.stl", testutil.CubeSTL(), 0o644))
	require.NoError(t, mem.WriteFile("models/open.stl", testutil.OpenBoxSTL(), 0o644))
	orch := New(modelstore.New(mem), slicer.NewPlanar(slicer.DefaultOptions()), output.New(mem, nil))
	return orch, mem
}

func TestCubeSliceScenario(t *testing.T) {
	orch, mem := builtins(t)

	preview, err := orch.SliceToFile(context.Background(), "models/cube.stl", "out/cube.gcode", domain.UseDefaults())
	require.NoError(t, err)
	assert.NotEmpty(t, preview)
	assert.Contains(t, preview, "G28")
	assert.Contains(t, preview, "\nG1 ")

	written, err := mem.ReadFile("out/cube.gcode")
	require.NoError(t, err)
	assert.Equal(t, preview, string(written))
}

func TestOpenMeshRejected(t *testing.T) {
	orch, mem := builtins(t)
	_, err := orch.SliceToFile(context.Background(), "models/open.stl", "out/open.gcode", domain.UseDefaults())
	assert.ErrorIs(t, err, domain.ErrInvalidModel)
	_, statErr := mem.Stat("out/open.gcode")
	assert.Error(t, statErr, "nothing is persisted when validation fails")
}

func TestStreamPartialCountEqualsFailureIndex(t *testing.T) {
	orch, _ := builtins(t)
	for _, k := range []int{0, 5, 42} {
		t.Run(fmt.Sprint(k), func(t *testing.T) {
			target := fmt.Sprintf("sim://bench?fail_at=%d", k)
			err := orch.StreamToDevice(context.Background(), "models/cube.stl", target, domain.UseDefaults(), true)
			var se *device.StreamError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, k, se.PartialCount)
		})
	}
}

func TestStreamBatchToSimulator(t *testing.T) {
	orch, _ := builtins(t)
	require.NoError(t, orch.StreamToDevice(context.Background(), "models/cube.stl", "sim://bench", domain.UseDefaults(), false))
}

func TestConcurrentRuns(t *testing.T) {
	orch, mem := builtins(t)
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orch.SliceToFile(context.Background(), "models/cube.stl", fmt.Sprintf("out/cube-%d.gcode", i), domain.UseDefaults())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, mem.Files(), 6)
}
