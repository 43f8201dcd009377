package extractor

import (
	"context"

	"wordfeud_cdf/extractor/internal/models"

	crerr "github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// ProvisionOptions selects what Provision creates
type ProvisionOptions struct {
	Namespace  string
	Username   string
	PipelineID string
	DataSetID  *int64
}

// Provision creates every metric time series of a user and, when PipelineID
// is set, the extraction pipeline. Existing resources are left as they are.
func Provision(ctx context.Context, p Provisioner, opts ProvisionOptions) error {
	if opts.Username == "" {
		return crerr.Mark(crerr.New("wordfeud username is required"), ErrConfiguration)
	}
	if opts.Namespace == "" {
		opts.Namespace = models.DefaultNamespace
	}

	specs := models.TimeSeriesSpecs(opts.Namespace, opts.Username, opts.DataSetID)
	if err := p.CreateTimeSeries(ctx, specs); err != nil {
		return markf(err, ErrStoreWrite, "create time series")
	}

	if opts.PipelineID != "" {
		spec := models.NewPipelineSpec(opts.PipelineID, opts.Username, opts.DataSetID)
		if err := p.CreatePipeline(ctx, spec); err != nil {
			return markf(err, ErrStoreWrite, "create extraction pipeline")
		}
	}

	log.Info().
		Str("username", opts.Username).
		Int("time_series", len(specs)).
		Str("pipeline", opts.PipelineID).
		Msg("Provisioning complete")
	return nil
}
