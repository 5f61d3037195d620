package db

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/hexslice/internal/pipeline"
)

// DefaultRunLimit is used by RecentRuns when limit is not positive.
const DefaultRunLimit = 20

// RecordRun stores a finished pipeline run. Recording the same id twice
// replaces the earlier row.
func (db *DB) RecordRun(ctx context.Context, r pipeline.Run) error {
	if r.ID == "" {
		return fmt.Errorf("run has no id")
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, kind, input, destination, model_type, settings_source,
			real_time, command_count, partial_count, status, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.Input, r.Destination, r.ModelType, r.SettingsSource,
		r.RealTime, r.CommandCount, r.PartialCount, string(r.Status), r.Error,
		r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	diagf("recorded %s run %s (%s)", r.Kind, r.ID, r.Status)
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]pipeline.Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, kind, input, destination, model_type, settings_source,
		       real_time, command_count, partial_count, status, error,
		       started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []pipeline.Run
	for rows.Next() {
		var (
			r                 pipeline.Run
			kind, status      string
			started, finished int64
		)
		if err := rows.Scan(
			&r.ID, &kind, &r.Input, &r.Destination, &r.ModelType, &r.SettingsSource,
			&r.RealTime, &r.CommandCount, &r.PartialCount, &status, &r.Error,
			&started, &finished,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Kind = pipeline.Kind(kind)
		r.Status = pipeline.Status(status)
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
