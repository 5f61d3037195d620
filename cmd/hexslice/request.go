package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/hexslice/internal/domain"
)

// errHelp is returned by parseArgs when usage was asked for.
var errHelp = errors.New("help requested")

// Globals are the flags every command accepts.
type Globals struct {
	ConfigPath string
	LogLevel   string
	NoHistory  bool
}

// Request is a parsed slice or stream invocation.
type Request struct {
	Command          string
	InputFile        string
	OutputFile       string
	ConnectionTarget string
	LayerHeight      float64
	InfillPercent    float64
	GenerateSupport  bool
	RealTime         bool

	Pattern     string
	PreviewHTML string
	PreviewPNG  string

	// explicit is set when any settings flag was given.
	explicit bool
}

// Settings turns the request's settings flags into a SettingsChoice. With no
// settings flags the slicer's type-dependent defaults apply.
func (r Request) Settings() (domain.SettingsChoice, error) {
	if !r.explicit {
		return domain.UseDefaults(), nil
	}
	s := domain.DefaultSettings()
	s.LayerHeight = r.LayerHeight
	s.InfillDensity = r.InfillPercent / 100
	s.GenerateSupport = r.GenerateSupport
	if r.Pattern != "" {
		p, err := domain.ParseInfillPattern(r.Pattern)
		if err != nil {
			return domain.SettingsChoice{}, err
		}
		s.InfillPattern = p
	}
	return domain.Explicit(s), nil
}

func addGlobalFlags(fs *flag.FlagSet, g *Globals) {
	fs.StringVar(&g.ConfigPath, "config", "", "path to a JSON config file")
	fs.StringVar(&g.LogLevel, "log-level", "quiet", "log verbosity: quiet, ops, diag or trace")
	fs.BoolVar(&g.NoHistory, "no-history", false, "do not open the history database")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// interleaved parses args into fs while allowing flags and positionals to be
// mixed, and returns the positionals in order. Everything after "--" is
// positional.
func interleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		f := fs.Lookup(name)
		if f == nil || isBoolFlag(f) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if err := fs.Parse(flags); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errHelp
		}
		return nil, err
	}
	return positional, nil
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// parseRequest parses the arguments of the slice and stream commands.
func parseRequest(command string, args []string, g *Globals) (Request, error) {
	r := Request{Command: command, LayerHeight: 0.2, InfillPercent: 20}

	fs := newFlagSet(command)
	addGlobalFlags(fs, g)
	fs.Float64Var(&r.LayerHeight, "l", r.LayerHeight, "layer height in mm")
	fs.Float64Var(&r.LayerHeight, "layer-height", r.LayerHeight, "layer height in mm")
	fs.Float64Var(&r.InfillPercent, "i", r.InfillPercent, "infill density percentage")
	fs.Float64Var(&r.InfillPercent, "infill", r.InfillPercent, "infill density percentage")
	fs.BoolVar(&r.GenerateSupport, "s", false, "generate support structures")
	fs.BoolVar(&r.GenerateSupport, "support", false, "generate support structures")
	fs.StringVar(&r.Pattern, "pattern", "", "infill pattern")
	if command == "slice" {
		fs.StringVar(&r.OutputFile, "o", "", "output G-code file")
		fs.StringVar(&r.OutputFile, "output", "", "output G-code file")
		fs.StringVar(&r.PreviewHTML, "preview-html", "", "write a per-layer HTML chart")
		fs.StringVar(&r.PreviewPNG, "preview-png", "", "write a PNG plot of the first layer")
	} else {
		fs.BoolVar(&r.RealTime, "r", false, "pace commands by printer acknowledgements")
		fs.BoolVar(&r.RealTime, "real-time", false, "pace commands by printer acknowledgements")
	}

	positional, err := interleaved(fs, args)
	if err != nil {
		return Request{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "l", "layer-height", "i", "infill", "s", "support", "pattern":
			r.explicit = true
		}
	})

	if len(positional) > 0 {
		r.InputFile = positional[0]
	}
	if len(positional) > 1 {
		if command == "stream" {
			r.ConnectionTarget = positional[1]
		} else if r.OutputFile == "" {
			r.OutputFile = positional[1]
		}
	}
	if len(positional) > 2 {
		return Request{}, fmt.Errorf("unexpected argument %q", positional[2])
	}

	if r.InputFile == "" {
		return Request{}, errors.New("input file is required")
	}
	if command == "stream" && strings.TrimSpace(r.ConnectionTarget) == "" {
		return Request{}, &domain.MissingConnectionError{}
	}
	return r, nil
}
