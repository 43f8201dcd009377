package repository

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS time_series (
	external_id TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	unit        TEXT NOT NULL DEFAULT '',
	data_set_id BIGINT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS datapoints (
	external_id TEXT NOT NULL REFERENCES time_series (external_id) ON DELETE CASCADE,
	ts_ms       BIGINT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	metadata    JSONB,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (external_id, ts_ms)
);

CREATE TABLE IF NOT EXISTS extraction_pipelines (
	external_id TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	data_set_id BIGINT,
	last_status TEXT,
	last_seen   TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS extraction_pipeline_runs (
	id                   UUID PRIMARY KEY,
	pipeline_external_id TEXT NOT NULL REFERENCES extraction_pipelines (external_id) ON DELETE CASCADE,
	status               TEXT NOT NULL,
	message              TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_extraction_pipeline_runs_pipeline
	ON extraction_pipeline_runs (pipeline_external_id, created_at DESC);
`

// EnsureSchema creates the metric store tables if they are missing
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
