package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		monthly_budget_cents INTEGER NOT NULL DEFAULT 0,
		month_spent_cents INTEGER NOT NULL DEFAULT 0,
		month_key TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'physical',
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		cached_analysis_json TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		username TEXT NOT NULL,
		platform TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'testing',
		videos_per_day INTEGER NOT NULL DEFAULT 0,
		frequency TEXT NOT NULL DEFAULT 'daily',
		last_upload_time TEXT,
		daily_cost_cents INTEGER NOT NULL DEFAULT 0 CHECK (daily_cost_cents >= 0),
		total_cost_cents INTEGER NOT NULL DEFAULT 0 CHECK (total_cost_cents >= 0),
		daily_limit_cents INTEGER NOT NULL DEFAULT 0,
		persona_json TEXT,
		access_token TEXT NOT NULL DEFAULT '',
		platform_user_id TEXT NOT NULL DEFAULT '',
		last_run_at TEXT,
		last_run_outcome TEXT NOT NULL DEFAULT '',
		last_run_cost_cents INTEGER NOT NULL DEFAULT 0,
		last_run_error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id INTEGER NOT NULL REFERENCES channels(id),
		job_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		cost_cents INTEGER NOT NULL DEFAULT 0,
		artifact_url TEXT NOT NULL DEFAULT '',
		remote_url TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channels_status ON channels(status)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_channel ON runs(channel_id, finished_at DESC)`,
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
