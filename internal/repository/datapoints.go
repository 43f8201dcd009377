package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// DatapointRepository handles datapoint reads and writes
type DatapointRepository struct {
	db *Database
}

// Latest returns the datapoint with the highest timestamp of a series.
// A missing or empty series yields an absent watermark.
func (r *DatapointRepository) Latest(ctx context.Context, externalID string) (models.Watermark, error) {
	start := time.Now()
	query := `
		SELECT ts_ms, value
		FROM datapoints
		WHERE external_id = $1
		ORDER BY ts_ms DESC
		LIMIT 1
	`

	var wm models.Watermark
	err := r.db.Pool.QueryRow(ctx, query, externalID).Scan(&wm.TimestampMs, &wm.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		recordStore("latest", nil, start)
		return models.Watermark{}, nil
	}
	recordStore("latest", err, start)
	if err != nil {
		return models.Watermark{}, fmt.Errorf("failed to get latest datapoint for %s: %w", externalID, err)
	}

	wm.Present = true
	return wm, nil
}

// InsertMultiple writes all batches in a single transaction. A datapoint at an
// existing timestamp replaces the stored one.
func (r *DatapointRepository) InsertMultiple(ctx context.Context, batches []models.SeriesBatch) (err error) {
	query := `
		INSERT INTO datapoints (external_id, ts_ms, value, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id, ts_ms) DO UPDATE SET
			value = EXCLUDED.value,
			metadata = EXCLUDED.metadata,
			inserted_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, b := range batches {
		for _, p := range b.Points {
			batch.Queue(query, b.ExternalID, p.TimestampMs, p.Value, p.Metadata)
		}
	}
	if batch.Len() == 0 {
		return nil
	}

	start := time.Now()
	defer func() { recordStore("insert", err, start) }()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err = results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert datapoint: %w", err)
		}
	}
	if err = results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit datapoints: %w", err)
	}

	log.Info().
		Int("series", len(batches)).
		Int("datapoints", batch.Len()).
		Msg("Datapoints inserted into database")
	return nil
}
