package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RecordRun appends the terminal outcome of a finished production job.
func (s *Store) RecordRun(ctx context.Context, run *Run) (*Run, error) {
	if run == nil {
		return nil, errors.New("run is required")
	}
	if strings.TrimSpace(run.JobID) == "" {
		return nil, errors.New("run job id is required")
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO runs (
			channel_id, job_id, outcome, stage, cost_cents,
			artifact_url, remote_url, error_message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ChannelID, run.JobID, string(run.Outcome), run.Stage, run.CostCents,
		run.ArtifactURL, run.RemoteURL, run.ErrorMessage,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	recorded := *run
	recorded.ID = id
	return &recorded, nil
}

const runColumns = `id, channel_id, job_id, outcome, stage, cost_cents,
	artifact_url, remote_url, error_message, started_at, finished_at`

func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		outcome    string
		startedRaw string
		finishRaw  string
	)
	err := row.Scan(
		&r.ID, &r.ChannelID, &r.JobID, &outcome, &r.Stage, &r.CostCents,
		&r.ArtifactURL, &r.RemoteURL, &r.ErrorMessage, &startedRaw, &finishRaw,
	)
	if err != nil {
		return nil, err
	}
	r.Outcome = RunOutcome(outcome)
	if r.StartedAt, err = parseTime(startedRaw); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = parseTime(finishRaw); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs across all channels, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listRuns(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
}

// ListRunsForChannel returns a channel's most recent runs, newest first.
func (s *Store) ListRunsForChannel(ctx context.Context, channelID int64, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listRuns(ctx,
		`SELECT `+runColumns+` FROM runs WHERE channel_id = ? ORDER BY finished_at DESC, id DESC LIMIT ?`,
		channelID, limit)
}

func (s *Store) listRuns(ctx context.Context, query string, args ...any) ([]*Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
