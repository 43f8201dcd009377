package extractor

import (
	"context"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/rs/zerolog/log"
)

// Watermarks holds the latest stored point of each metric
type Watermarks map[models.Metric]models.Watermark

// Rating returns the watermark that drives record selection
func (w Watermarks) Rating() models.Watermark {
	return w[models.MetricRating]
}

// ResolveWatermarks reads the latest stored point of every metric of a user.
// Any read failure is returned marked ErrStoreRead.
func ResolveWatermarks(ctx context.Context, store MetricStore, namespace, username string) (Watermarks, error) {
	watermarks := make(Watermarks, len(models.AllMetrics))

	for _, metric := range models.AllMetrics {
		externalID := models.ExternalID(namespace, username, metric)
		wm, err := store.Latest(ctx, externalID)
		if err != nil {
			return nil, markf(err, ErrStoreRead, "read watermark %s", externalID)
		}
		watermarks[metric] = wm

		event := log.Debug().Str("metric", string(metric))
		if wm.Present {
			event = event.Int64("timestamp_ms", wm.TimestampMs).Float64("value", wm.Value)
		}
		event.Bool("present", wm.Present).Msg("Watermark resolved")
	}

	return watermarks, nil
}
