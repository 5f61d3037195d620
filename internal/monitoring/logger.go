package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the destinations of the three log streams every package
// exposes through its SetLogWriters function. A nil writer disables a stream.
//
//   - Ops: failures, warnings and lifecycle events an operator acts on.
//   - Diag: day-to-day diagnostics such as validation outcomes.
//   - Trace: per-layer and per-command telemetry.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Level names accepted by ForLevel, from quietest to loudest.
var Levels = []string{"quiet", "ops", "diag", "trace"}

// ForLevel returns writers with every stream up to and including level
// directed at w. "quiet" disables all three.
func ForLevel(level string, w io.Writer) (LogWriters, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "quiet":
		return LogWriters{}, nil
	case "ops":
		return LogWriters{Ops: w}, nil
	case "diag":
		return LogWriters{Ops: w, Diag: w}, nil
	case "trace":
		return LogWriters{Ops: w, Diag: w, Trace: w}, nil
	}
	return LogWriters{}, fmt.Errorf("unknown log level %q (want one of %s)", level, strings.Join(Levels, ", "))
}

// Printf adapts an io.Writer into a Logf-compatible function. A nil writer
// yields a no-op.
func Printf(w io.Writer) func(format string, v ...interface{}) {
	if w == nil {
		return func(string, ...interface{}) {}
	}
	l := log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	return l.Printf
}
