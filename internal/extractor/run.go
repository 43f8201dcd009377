package extractor

import (
	"context"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/metrics"
	"wordfeud_cdf/extractor/internal/models"

	crerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options identifies whose games a run extracts and where it reports
type Options struct {
	Namespace  string
	Username   string
	PipelineID string
	ReportRuns bool
}

// Extractor runs one extraction for one Wordfeud user
type Extractor struct {
	source   GameSource
	store    MetricStore
	reporter RunReporter
	opts     Options
}

// New creates an Extractor. reporter may be nil when runs are not reported.
func New(source GameSource, store MetricStore, reporter RunReporter, opts Options) *Extractor {
	if opts.Namespace == "" {
		opts.Namespace = models.DefaultNamespace
	}
	return &Extractor{
		source:   source,
		store:    store,
		reporter: reporter,
		opts:     opts,
	}
}

// Run performs one extraction. Any failure after validation is reported to
// the pipeline as "{kind}: {error}" and then returned.
func (e *Extractor) Run(ctx context.Context) error {
	if err := e.validate(); err != nil {
		metrics.RecordError("extractor", Kind(err))
		return err
	}

	start := time.Now()
	logger := log.With().
		Str("run_id", uuid.NewString()).
		Str("username", e.opts.Username).
		Logger()

	logger.Info().Msg("Extraction run starting")

	summary, err := e.extract(ctx)
	duration := time.Since(start)

	if err != nil {
		kind := Kind(err)
		metrics.RecordError("extractor", kind)
		metrics.RecordSync("failure", duration.Seconds())
		logger.Error().
			Err(err).
			Str("kind", kind).
			Dur("duration", duration).
			Msg("Extraction run failed")

		if reportErr := e.report(ctx, models.RunStatusFailure, fmt.Sprintf("%s: %v", kind, err)); reportErr != nil {
			logger.Error().Err(reportErr).Msg("Failed to report run failure")
		}
		return err
	}

	if err := e.report(ctx, models.RunStatusSuccess, ""); err != nil {
		metrics.RecordError("extractor", "report")
		metrics.RecordSync("failure", duration.Seconds())
		return fmt.Errorf("failed to report run success: %w", err)
	}

	metrics.RecordSync("success", duration.Seconds())
	logger.Info().
		Int("datapoints", summary.Total()).
		Int("missing_series", len(summary.MissingSeries)).
		Dur("duration", duration).
		Msg("Extraction run completed")
	return nil
}

func (e *Extractor) validate() error {
	if e.opts.Username == "" {
		return crerr.Mark(crerr.New("wordfeud username is required"), ErrConfiguration)
	}
	if e.opts.ReportRuns {
		if e.opts.PipelineID == "" {
			return crerr.Mark(crerr.New("extraction pipeline id is required when reporting runs"), ErrConfiguration)
		}
		if e.reporter == nil {
			return crerr.Mark(crerr.New("run reporter is required when reporting runs"), ErrConfiguration)
		}
	}
	return nil
}

func (e *Extractor) extract(ctx context.Context) (WriteSummary, error) {
	watermarks, err := ResolveWatermarks(ctx, e.store, e.opts.Namespace, e.opts.Username)
	if err != nil {
		return WriteSummary{}, err
	}

	allGames, err := e.source.AllGames(ctx)
	if err != nil {
		return WriteSummary{}, markf(err, ErrRemoteFetch, "fetch games")
	}
	ratedGames, err := e.source.RatedGames(ctx)
	if err != nil {
		return WriteSummary{}, markf(err, ErrRemoteFetch, "fetch rated games")
	}

	cs := BuildChangeSet(allGames, ratedGames, watermarks.Rating())

	return WriteChangeSet(ctx, e.store, e.opts.Namespace, e.opts.Username, cs)
}

func (e *Extractor) report(ctx context.Context, status models.RunStatus, message string) error {
	if !e.opts.ReportRuns {
		return nil
	}
	return e.reporter.ReportRun(ctx, e.opts.PipelineID, status, message)
}
