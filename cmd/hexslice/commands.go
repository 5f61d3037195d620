package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/hexslice/internal/config"
	"github.com/banshee-data/hexslice/internal/db"
	"github.com/banshee-data/hexslice/internal/device"
	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/modelstore"
	"github.com/banshee-data/hexslice/internal/monitoring"
	"github.com/banshee-data/hexslice/internal/output"
	"github.com/banshee-data/hexslice/internal/pipeline"
	"github.com/banshee-data/hexslice/internal/plugins"
	"github.com/banshee-data/hexslice/internal/preview"
	"github.com/banshee-data/hexslice/internal/registry"
	"github.com/banshee-data/hexslice/internal/security"
	"github.com/banshee-data/hexslice/internal/slicer"
	"github.com/banshee-data/hexslice/internal/version"
)

const previewChars = 200

// run executes one hexslice invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return 0
	}
	err := dispatch(ctx, args, stdout, stderr)
	if errors.Is(err, errHelp) {
		printUsage(stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "hexslice: %s\n", oneLine(err))
		return 1
	}
	return 0
}

func oneLine(err error) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(err.Error(), "\n", "; ")), " ")
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	command := strings.ToLower(args[0])
	rest := args[1:]
	switch command {
	case "help", "-h", "--help":
		return errHelp
	case "version", "--version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "slice", "stream":
		return runPipeline(ctx, command, rest, stdout, stderr)
	case "history":
		return runHistory(ctx, rest, stdout, stderr)
	case "printers":
		return runPrinters(ctx, rest, stdout, stderr)
	}
	return fmt.Errorf("unknown command %q (run \"hexslice help\")", args[0])
}

// app is the composed process: configuration plus a registry holding the
// built-in providers and the command surface itself.
type app struct {
	cfg      *config.Config
	reg      *registry.Registry
	builtins *plugins.Builtins
}

func setLogWriters(w monitoring.LogWriters) {
	registry.SetLogWriters(w.Ops, w.Diag, w.Trace)
	pipeline.SetLogWriters(w.Ops, w.Diag, w.Trace)
	modelstore.SetLogWriters(w.Ops, w.Diag, w.Trace)
	slicer.SetLogWriters(w.Ops, w.Diag, w.Trace)
	output.SetLogWriters(w.Ops, w.Diag, w.Trace)
	device.SetLogWriters(w.Ops, w.Diag, w.Trace)
	db.SetLogWriters(w.Ops, w.Diag, w.Trace)
	plugins.SetLogWriters(w.Ops, w.Diag, w.Trace)
	monitoring.SetLogger(monitoring.Printf(w.Diag))
}

// setup loads configuration and registers the providers. needHistory forces
// the history database open for commands that cannot work without it.
func setup(g Globals, stderr io.Writer, needHistory bool) (*app, error) {
	writers, err := monitoring.ForLevel(g.LogLevel, stderr)
	if err != nil {
		return nil, err
	}
	setLogWriters(writers)

	cfg, err := config.Resolve(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	sopts := slicer.DefaultOptions()
	sopts.Flavor = cfg.GetFlavor()
	sopts.BedTemperature = cfg.GetBedTemperature()
	vol := cfg.GetBuildVolume()
	sopts.BuildVolume = r3.Vec{X: vol.X, Y: vol.Y, Z: vol.Z}
	sopts.LineWidth = cfg.GetLineWidth()

	baud, dataBits, stopBits, parity := cfg.GetSerial()
	opts := plugins.Options{
		Slicer:      sopts,
		Serial:      device.PortOptions{BaudRate: baud, DataBits: dataBits, StopBits: stopBits, Parity: parity},
		AckTimeout:  cfg.GetAckTimeout(),
		AllowedDirs: cfg.GetAllowedOutputDirs(),
	}
	if needHistory {
		opts.HistoryPath = cfg.GetDatabasePath()
		opts.RequireHistory = true
	} else if cfg.GetHistoryEnabled() && !g.NoHistory {
		opts.HistoryPath = cfg.GetDatabasePath()
	}

	reg := registry.New()
	b, err := plugins.RegisterBuiltins(reg, opts)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(cliProvider{}); err != nil {
		_ = reg.ShutdownAll()
		return nil, err
	}
	return &app{cfg: cfg, reg: reg, builtins: b}, nil
}

func (a *app) close(stderr io.Writer) {
	if err := a.reg.ShutdownAll(); err != nil {
		fmt.Fprintf(stderr, "hexslice: shutdown: %s\n", oneLine(err))
	}
}

func runPipeline(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	var g Globals
	req, err := parseRequest(command, args, &g)
	if err != nil {
		return err
	}
	settings, err := req.Settings()
	if err != nil {
		return err
	}

	a, err := setup(g, stderr, false)
	if err != nil {
		return err
	}
	defer a.close(stderr)
	orch := a.builtins.Orchestrator()

	if command == "stream" {
		fmt.Fprintf(stdout, "Streaming %s to printer at %s (%s mode)...\n",
			req.InputFile, req.ConnectionTarget, device.ModeFor(req.RealTime))
		if err := orch.StreamToDevice(ctx, req.InputFile, req.ConnectionTarget, settings, req.RealTime); err != nil {
			return fmt.Errorf("failed to stream to printer: %w", err)
		}
		fmt.Fprintln(stdout, "Streaming completed successfully.")
		return nil
	}

	out := req.OutputFile
	if out == "" {
		out = security.OutputPathFor(req.InputFile)
	}
	for _, p := range []string{req.PreviewHTML, req.PreviewPNG} {
		if p == "" {
			continue
		}
		if err := security.ValidatePathWithinAllowedDirs(p, a.cfg.GetAllowedOutputDirs()); err != nil {
			return fmt.Errorf("invalid preview path: %w", err)
		}
	}
	fmt.Fprintf(stdout, "Slicing %s to %s...\n", req.InputFile, out)
	content, err := orch.SliceToFile(ctx, req.InputFile, out, settings)
	if err != nil {
		return fmt.Errorf("failed to slice file: %w", err)
	}
	fmt.Fprintln(stdout, "Slicing completed successfully.")
	fmt.Fprintf(stdout, "G-code file created: %s\n", out)
	fmt.Fprintln(stdout, "G-code preview (first few lines):")
	fmt.Fprintln(stdout, firstChars(content, previewChars)+"...")

	return writePreviews(req, content, a.cfg.GetFlavor(), stdout)
}

func firstChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func writePreviews(req Request, content string, flavor domain.Flavor, stdout io.Writer) error {
	if req.PreviewHTML == "" && req.PreviewPNG == "" {
		return nil
	}
	g, err := domain.ParseGCode(flavor, content)
	if err != nil {
		return err
	}
	if req.PreviewHTML != "" {
		f, err := os.Create(req.PreviewHTML)
		if err != nil {
			return fmt.Errorf("failed to create preview: %w", err)
		}
		name := domain.ModelName(req.InputFile)
		if err := preview.WriteLayerChart(f, name, preview.Layers(g)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write preview: %w", err)
		}
		fmt.Fprintf(stdout, "Layer chart written: %s\n", req.PreviewHTML)
	}
	if req.PreviewPNG != "" {
		if err := preview.PlotLayer(g, 0, req.PreviewPNG); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "First layer plot written: %s\n", req.PreviewPNG)
	}
	return nil
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var g Globals
	fs := newFlagSet("history")
	addGlobalFlags(fs, &g)
	limit := fs.Int("limit", db.DefaultRunLimit, "number of runs to show")
	positional, err := interleaved(fs, args)
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		return fmt.Errorf("unexpected argument %q", positional[0])
	}

	a, err := setup(g, stderr, true)
	if err != nil {
		return err
	}
	defer a.close(stderr)

	runs, err := a.builtins.History.DB().RecentRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(stdout, "%-20s %-7s %-10s %-9s %-10s %s -> %s\n",
		"STARTED", "KIND", "STATUS", "COMMANDS", "DURATION", "INPUT", "DESTINATION")
	for _, r := range runs {
		commands := fmt.Sprintf("%d", r.CommandCount)
		if r.Kind == pipeline.KindStream && r.Status != pipeline.StatusSucceeded && r.CommandCount > 0 {
			commands = fmt.Sprintf("%d/%d", r.PartialCount, r.CommandCount)
		}
		fmt.Fprintf(stdout, "%-20s %-7s %-10s %-9s %-10s %s -> %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Kind, r.Status, commands,
			r.Duration().Round(time.Millisecond), r.Input, r.Destination)
		if r.Error != "" {
			fmt.Fprintf(stdout, "    error: %s\n", r.Error)
		}
	}
	return nil
}

func runPrinters(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New("printers: expected add, list or remove")
	}
	sub, args := strings.ToLower(args[0]), args[1:]

	var g Globals
	fs := newFlagSet("printers " + sub)
	addGlobalFlags(fs, &g)
	var p db.Printer
	if sub == "add" {
		fs.IntVar(&p.Serial.BaudRate, "baud", 0, "serial baud rate")
		fs.StringVar(&p.Serial.Parity, "parity", "", "serial parity: N, E or O")
		fs.StringVar(&p.Description, "description", "", "free-form description")
	}
	positional, err := interleaved(fs, args)
	if err != nil {
		return err
	}

	want := map[string]int{"add": 2, "list": 0, "remove": 1}
	n, ok := want[sub]
	if !ok {
		return fmt.Errorf("printers: unknown subcommand %q", sub)
	}
	if len(positional) != n {
		return fmt.Errorf("printers %s: expected %d argument(s), got %d", sub, n, len(positional))
	}

	a, err := setup(g, stderr, true)
	if err != nil {
		return err
	}
	defer a.close(stderr)
	store := a.builtins.History.DB()

	switch sub {
	case "add":
		p.Name, p.Target = positional[0], positional[1]
		if _, err := store.CreatePrinter(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Added printer %s (%s)\n", p.Name, p.Target)
	case "remove":
		if err := store.DeletePrinter(ctx, positional[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Removed printer %s\n", positional[0])
	case "list":
		printers, err := store.Printers(ctx)
		if err != nil {
			return err
		}
		if len(printers) == 0 {
			fmt.Fprintln(stdout, "No printers configured.")
			return nil
		}
		for _, p := range printers {
			line := fmt.Sprintf("%-16s %s", p.Name, p.Target)
			if p.Serial != (device.PortOptions{}) {
				line += " [" + p.Serial.String() + "]"
			}
			if p.Description != "" {
				line += "  " + p.Description
			}
			fmt.Fprintln(stdout, line)
		}
	}
	return nil
}
