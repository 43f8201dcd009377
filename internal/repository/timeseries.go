package repository

import (
	"context"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/metrics"
	"wordfeud_cdf/extractor/internal/models"

	"github.com/rs/zerolog/log"
)

// TimeSeriesRepository handles time series definitions
type TimeSeriesRepository struct {
	db *Database
}

// Create inserts the given series; existing series are left untouched
func (r *TimeSeriesRepository) Create(ctx context.Context, specs []models.TimeSeriesSpec) error {
	start := time.Now()
	query := `
		INSERT INTO time_series (external_id, name, unit, data_set_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO NOTHING
	`

	created := 0
	for _, spec := range specs {
		tag, err := r.db.Pool.Exec(ctx, query, spec.ExternalID, spec.Name, spec.Unit, spec.DataSetID)
		if err != nil {
			recordStore("create_timeseries", err, start)
			return fmt.Errorf("failed to create time series %s: %w", spec.ExternalID, err)
		}
		if tag.RowsAffected() == 0 {
			log.Info().Str("external_id", spec.ExternalID).Msg("Time series already exists")
			continue
		}
		created++
	}
	recordStore("create_timeseries", nil, start)

	log.Info().Int("count", created).Msg("Time series created")
	return nil
}

// ExistingIDs returns which of the given series exist
func (r *TimeSeriesRepository) ExistingIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	start := time.Now()
	rows, err := r.db.Pool.Query(ctx,
		`SELECT external_id FROM time_series WHERE external_id = ANY($1)`,
		externalIDs,
	)
	if err != nil {
		recordStore("byids", err, start)
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			recordStore("byids", err, start)
			return nil, fmt.Errorf("failed to scan time series: %w", err)
		}
		existing[id] = true
	}
	err = rows.Err()
	recordStore("byids", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate time series: %w", err)
	}

	return existing, nil
}

func recordStore(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStoreOperation(backend, operation, status, time.Since(start).Seconds())
}
