package cdf

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/rs/zerolog/log"
)

// maxRunMessageLength is the limit CDF applies to extraction pipeline run messages
const maxRunMessageLength = 1000

// truncateRunMessage cuts message to maxRunMessageLength characters
func truncateRunMessage(message string) string {
	if utf8.RuneCountInString(message) <= maxRunMessageLength {
		return message
	}
	n := 0
	for i := range message {
		if n == maxRunMessageLength {
			return message[:i]
		}
		n++
	}
	return message
}

type pipelineItem struct {
	ExternalID  string `json:"externalId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataSetID   *int64 `json:"dataSetId,omitempty"`
}

type runItem struct {
	ExtpipeExternalID string `json:"extpipeExternalId"`
	Status            string `json:"status"`
	Message           string `json:"message,omitempty"`
}

// ReportRun records the outcome of an extraction run on the pipeline
func (c *Client) ReportRun(ctx context.Context, pipelineID string, status models.RunStatus, message string) error {
	message = truncateRunMessage(message)

	start := time.Now()
	err := c.post(ctx, "extpipes/runs", map[string]any{
		"items": []runItem{{
			ExtpipeExternalID: pipelineID,
			Status:            string(status),
			Message:           message,
		}},
	}, nil)
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

// CreatePipeline creates the extraction pipeline; an existing pipeline is not an error
func (c *Client) CreatePipeline(ctx context.Context, spec models.PipelineSpec) error {
	start := time.Now()
	err := c.post(ctx, "extpipes", map[string]any{
		"items": []pipelineItem{{
			ExternalID:  spec.ExternalID,
			Name:        spec.Name,
			Description: spec.Description,
			DataSetID:   spec.DataSetID,
		}},
	}, nil)
	recordStore("create_pipeline", err, start)

	if IsConflict(err) {
		log.Info().Str("pipeline", spec.ExternalID).Msg("Extraction pipeline already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create extraction pipeline: %w", err)
	}

	log.Info().Str("pipeline", spec.ExternalID).Msg("Extraction pipeline created")
	return nil
}
