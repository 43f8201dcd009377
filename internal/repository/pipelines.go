package repository

import (
	"context"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PipelineRun is a stored extraction pipeline run
type PipelineRun struct {
	ID         uuid.UUID
	PipelineID string
	Status     models.RunStatus
	Message    string
	CreatedAt  time.Time
}

// PipelineRepository handles extraction pipelines and their runs
type PipelineRepository struct {
	db *Database
}

// Create inserts the pipeline if it does not exist yet
func (r *PipelineRepository) Create(ctx context.Context, spec models.PipelineSpec) error {
	start := time.Now()
	query := `
		INSERT INTO extraction_pipelines (external_id, name, description, data_set_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query, spec.ExternalID, spec.Name, spec.Description, spec.DataSetID)
	recordStore("create_pipeline", err, start)
	if err != nil {
		return fmt.Errorf("failed to create extraction pipeline: %w", err)
	}

	if tag.RowsAffected() == 0 {
		log.Info().Str("pipeline", spec.ExternalID).Msg("Extraction pipeline already exists")
		return nil
	}
	log.Info().Str("pipeline", spec.ExternalID).Msg("Extraction pipeline created")
	return nil
}

// ReportRun stores a run and updates the pipeline's last status
func (r *PipelineRepository) ReportRun(ctx context.Context, pipelineID string, status models.RunStatus, message string) error {
	start := time.Now()

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE extraction_pipelines SET last_status = $2, last_seen = NOW() WHERE external_id = $1`,
			pipelineID, string(status),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("extraction pipeline %s does not exist", pipelineID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO extraction_pipeline_runs (id, pipeline_external_id, status, message) VALUES ($1, $2, $3, $4)`,
			uuid.New(), pipelineID, string(status), message,
		)
		return err
	})
	recordStore("report_run", err, start)
	if err != nil {
		return fmt.Errorf("failed to report extraction pipeline run: %w", err)
	}

	log.Debug().
		Str("pipeline", pipelineID).
		Str("status", string(status)).
		Msg("Extraction pipeline run reported")
	return nil
}

// RecentRuns returns the latest runs of a pipeline, newest first
func (r *PipelineRepository) RecentRuns(ctx context.Context, pipelineID string, limit int) ([]PipelineRun, error) {
	query := `
		SELECT id, pipeline_external_id, status, message, created_at
		FROM extraction_pipeline_runs
		WHERE pipeline_external_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, pipelineID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		var run PipelineRun
		var status string
		if err := rows.Scan(&run.ID, &run.PipelineID, &status, &run.Message, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		run.Status = models.RunStatus(status)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
