package pipeline

import (
	"context"
	"time"
)

// Kind names the orchestrator operation a run executed.
type Kind string

const (
	KindSlice  Kind = "slice"
	KindStream Kind = "stream"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run describes one pipeline execution.
type Run struct {
	ID             string
	Kind           Kind
	Input          string
	Destination    string // output path or connection target
	ModelType      string // empty when loading failed
	SettingsSource string // "explicit" or "default"
	RealTime       bool
	CommandCount   int
	PartialCount   int // confirmed commands when a stream failed
	Status         Status
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Duration is the wall time the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRecorder receives every finished run.
type RunRecorder interface {
	RecordRun(ctx context.Context, r Run) error
}
