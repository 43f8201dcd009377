// Package extractor turns Wordfeud game history into rating metric datapoints.
//
// A run reads the rating watermark from the metric store, fetches the account's
// games, builds the points that are newer than the watermark and appends them
// in one bulk call. The outcome is reported to an extraction pipeline.
package extractor

import (
	"context"

	"wordfeud_cdf/extractor/internal/models"
)

// GameSource fetches games from the Wordfeud API
type GameSource interface {
	AllGames(ctx context.Context) ([]models.GameInput, error)
	RatedGames(ctx context.Context) ([]models.GameInput, error)
}

// MetricStore reads watermarks from and appends datapoints to time series
type MetricStore interface {
	Latest(ctx context.Context, externalID string) (models.Watermark, error)
	ExistingIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	InsertMultiple(ctx context.Context, batches []models.SeriesBatch) error
}

// RunReporter records run outcomes on an extraction pipeline
type RunReporter interface {
	ReportRun(ctx context.Context, pipelineID string, status models.RunStatus, message string) error
}

// Provisioner creates the time series and pipeline a user's runs write to
type Provisioner interface {
	CreateTimeSeries(ctx context.Context, specs []models.TimeSeriesSpec) error
	CreatePipeline(ctx context.Context, spec models.PipelineSpec) error
}
