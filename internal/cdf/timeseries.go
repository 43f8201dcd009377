package cdf

import (
	"context"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/metrics"
	"wordfeud_cdf/extractor/internal/models"

	"github.com/rs/zerolog/log"
)

type externalIDItem struct {
	ExternalID string `json:"externalId"`
}

type latestQuery struct {
	ExternalID string `json:"externalId"`
	Before     string `json:"before"`
}

type datapoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type datapointsItem struct {
	ExternalID string      `json:"externalId"`
	Datapoints []datapoint `json:"datapoints"`
}

type timeSeriesItem struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name,omitempty"`
	Unit       string `json:"unit,omitempty"`
	DataSetID  *int64 `json:"dataSetId,omitempty"`
}

// Latest returns the most recent datapoint of a time series.
// An unknown series or an empty series yields an absent watermark.
func (c *Client) Latest(ctx context.Context, externalID string) (models.Watermark, error) {
	start := time.Now()
	payload := map[string]any{
		"items":            []latestQuery{{ExternalID: externalID, Before: "now"}},
		"ignoreUnknownIds": true,
	}

	var resp struct {
		Items []datapointsItem `json:"items"`
	}
	err := c.post(ctx, "timeseries/data/latest", payload, &resp)
	recordStore("latest", err, start)
	if err != nil {
		return models.Watermark{}, fmt.Errorf("failed to retrieve latest datapoint for %s: %w", externalID, err)
	}

	for _, item := range resp.Items {
		if item.ExternalID != externalID || len(item.Datapoints) == 0 {
			continue
		}
		dp := item.Datapoints[len(item.Datapoints)-1]
		return models.Watermark{Present: true, TimestampMs: dp.Timestamp, Value: dp.Value}, nil
	}

	return models.Watermark{}, nil
}

// ExistingIDs returns which of the given time series exist
func (c *Client) ExistingIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	start := time.Now()
	items := make([]externalIDItem, 0, len(externalIDs))
	for _, id := range externalIDs {
		items = append(items, externalIDItem{ExternalID: id})
	}

	var resp struct {
		Items []externalIDItem `json:"items"`
	}
	err := c.post(ctx, "timeseries/byids", map[string]any{
		"items":            items,
		"ignoreUnknownIds": true,
	}, &resp)
	recordStore("byids", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve time series: %w", err)
	}

	for _, item := range resp.Items {
		existing[item.ExternalID] = true
	}
	return existing, nil
}

// InsertMultiple appends datapoints to several time series in one request.
// CDF numeric datapoints have no metadata; point metadata is not sent.
func (c *Client) InsertMultiple(ctx context.Context, batches []models.SeriesBatch) error {
	items := make([]datapointsItem, 0, len(batches))
	total := 0
	for _, batch := range batches {
		if len(batch.Points) == 0 {
			continue
		}
		dps := make([]datapoint, 0, len(batch.Points))
		for _, p := range batch.Points {
			dps = append(dps, datapoint{Timestamp: p.TimestampMs, Value: p.Value})
		}
		items = append(items, datapointsItem{ExternalID: batch.ExternalID, Datapoints: dps})
		total += len(dps)
	}
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	err := c.post(ctx, "timeseries/data", map[string]any{"items": items}, nil)
	recordStore("insert", err, start)
	if err != nil {
		return fmt.Errorf("failed to insert datapoints: %w", err)
	}

	log.Info().
		Int("series", len(items)).
		Int("datapoints", total).
		Msg("Datapoints inserted into CDF")
	return nil
}

// CreateTimeSeries creates the series that do not exist yet
func (c *Client) CreateTimeSeries(ctx context.Context, specs []models.TimeSeriesSpec) error {
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.ExternalID)
	}
	existing, err := c.ExistingIDs(ctx, ids)
	if err != nil {
		return err
	}

	items := make([]timeSeriesItem, 0, len(specs))
	for _, spec := range specs {
		if existing[spec.ExternalID] {
			log.Info().Str("external_id", spec.ExternalID).Msg("Time series already exists")
			continue
		}
		items = append(items, timeSeriesItem{
			ExternalID: spec.ExternalID,
			Name:       spec.Name,
			Unit:       spec.Unit,
			DataSetID:  spec.DataSetID,
		})
	}
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	err = c.post(ctx, "timeseries", map[string]any{"items": items}, nil)
	recordStore("create_timeseries", err, start)
	if err != nil {
		return fmt.Errorf("failed to create time series: %w", err)
	}

	log.Info().Int("count", len(items)).Msg("Time series created")
	return nil
}

func recordStore(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStoreOperation(backend, operation, status, time.Since(start).Seconds())
}
