package extractor

import (
	"context"

	"wordfeud_cdf/extractor/internal/metrics"
	"wordfeud_cdf/extractor/internal/models"

	"github.com/rs/zerolog/log"
)

// WriteSummary describes what a write appended
type WriteSummary struct {
	Written       map[models.Metric]int
	MissingSeries []models.Metric
}

// Total returns the number of datapoints appended
func (s WriteSummary) Total() int {
	n := 0
	for _, c := range s.Written {
		n += c
	}
	return n
}

// WriteChangeSet appends the change set in a single bulk call. Metrics whose
// series does not exist are skipped with a warning.
func WriteChangeSet(ctx context.Context, store MetricStore, namespace, username string, cs ChangeSet) (WriteSummary, error) {
	summary := WriteSummary{Written: make(map[models.Metric]int)}
	if cs.IsEmpty() {
		log.Info().Msg("No new datapoints to write")
		return summary, nil
	}

	var metricsWithPoints []models.Metric
	ids := make([]string, 0, len(cs.Points))
	for _, metric := range models.AllMetrics {
		if len(cs.Points[metric]) == 0 {
			continue
		}
		metricsWithPoints = append(metricsWithPoints, metric)
		ids = append(ids, models.ExternalID(namespace, username, metric))
	}

	existing, err := store.ExistingIDs(ctx, ids)
	if err != nil {
		return summary, markf(err, ErrStoreRead, "check time series")
	}

	batches := make([]models.SeriesBatch, 0, len(metricsWithPoints))
	batchMetrics := make([]models.Metric, 0, len(metricsWithPoints))
	for i, metric := range metricsWithPoints {
		if !existing[ids[i]] {
			summary.MissingSeries = append(summary.MissingSeries, metric)
			metrics.RecordMissingSeries(string(metric))
			log.Warn().
				Str("external_id", ids[i]).
				Int("points", len(cs.Points[metric])).
				Msg("Time series does not exist, skipping metric")
			continue
		}
		batches = append(batches, models.SeriesBatch{ExternalID: ids[i], Points: cs.Points[metric]})
		batchMetrics = append(batchMetrics, metric)
	}

	if len(batches) == 0 {
		return summary, nil
	}

	if err := store.InsertMultiple(ctx, batches); err != nil {
		return summary, markf(err, ErrStoreWrite, "insert datapoints")
	}

	for i, metric := range batchMetrics {
		summary.Written[metric] = len(batches[i].Points)
		metrics.RecordDatapoints(string(metric), len(batches[i].Points))
	}

	return summary, nil
}
