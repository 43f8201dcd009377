// Package app wires the extractor's collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"strconv"

	"wordfeud_cdf/extractor/internal/cache"
	"wordfeud_cdf/extractor/internal/cdf"
	"wordfeud_cdf/extractor/internal/config"
	"wordfeud_cdf/extractor/internal/extractor"
	"wordfeud_cdf/extractor/internal/repository"
	"wordfeud_cdf/extractor/internal/scheduler"
	"wordfeud_cdf/extractor/internal/wordfeud"

	crerr "github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// metricBackend is what both metric stores provide
type metricBackend interface {
	extractor.MetricStore
	extractor.RunReporter
	extractor.Provisioner
}

// App holds the assembled extractor and its resources
type App struct {
	Config    *config.Config
	Extractor *extractor.Extractor
	Store     metricBackend
	Games     *wordfeud.Client

	// Locker is nil when Redis is disabled or unreachable
	Locker scheduler.Locker

	redis   *cache.RedisCache
	closers []func()
}

var connectRedis = cache.NewRedisCache

// New builds the application from configuration
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// Validate names before any connection is opened
	ruleSet, err := wordfeud.ParseRuleSet(cfg.WordfeudRuleSet)
	if err != nil {
		return nil, crerr.Mark(err, extractor.ErrConfiguration)
	}
	boardType, err := wordfeud.ParseBoardType(cfg.WordfeudBoardType)
	if err != nil {
		return nil, crerr.Mark(err, extractor.ErrConfiguration)
	}

	var sessions wordfeud.SessionCache
	if cfg.RedisEnabled {
		redisCache, err := connectRedis(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without session cache and lock")
		} else {
			a.closers = append(a.closers, func() { _ = redisCache.Close() })
			sessions = redisCache
			a.Locker = redisCache
			a.redis = redisCache
			log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis cache connected")
		}
	}

	a.Games = wordfeud.NewClient(wordfeud.Config{
		BaseURL:                 cfg.WordfeudBaseURL,
		Email:                   cfg.WordfeudEmail,
		Password:                cfg.WordfeudPassword,
		Timeout:                 cfg.WordfeudTimeout,
		RuleSet:                 ruleSet,
		BoardType:               boardType,
		RateLimit:               cfg.WordfeudRateLimit,
		Sessions:                sessions,
		SessionTTL:              cfg.WordfeudSessionTTL,
		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
	})
	log.Info().
		Str("rule_set", cfg.WordfeudRuleSet).
		Str("board_type", cfg.WordfeudBoardType).
		Msg("Wordfeud client initialized")

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.Extractor = extractor.New(a.Games, store, store, extractor.Options{
		Namespace:  cfg.Namespace,
		Username:   cfg.WordfeudUsername,
		PipelineID: cfg.ExtractionPipeline,
		ReportRuns: cfg.ReportRuns,
	})

	return a, nil
}

func (a *App) newStore(ctx context.Context) (metricBackend, error) {
	cfg := a.Config

	switch cfg.MetricStore {
	case config.StoreCDF:
		client := cdf.NewClient(cdf.Config{
			BaseURL:                 cfg.CDFBaseURL,
			Project:                 cfg.CDFProject,
			ClientID:                cfg.CDFClientID,
			ClientSecret:            cfg.CDFClientSecret,
			TokenURL:                cfg.TokenURL(),
			Scopes:                  cfg.CDFScopes(),
			Timeout:                 cfg.CDFTimeout,
			BreakerFailureThreshold: cfg.BreakerFailureThreshold,
			BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		})
		log.Info().
			Str("project", cfg.CDFProject).
			Str("base_url", cfg.CDFBaseURL).
			Msg("CDF client initialized")
		return client, nil

	case config.StorePostgres:
		db, err := repository.NewDatabase(ctx, repository.Config{
			Host:     cfg.DatabaseHost,
			Port:     cfg.DatabasePort,
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	}

	return nil, crerr.Mark(crerr.Newf("unknown metric store %q", cfg.MetricStore), extractor.ErrConfiguration)
}

// Provision creates the user's time series and, whenever a pipeline id is
// configured, the extraction pipeline. REPORT_RUNS only governs run reporting.
func (a *App) Provision(ctx context.Context) error {
	opts := extractor.ProvisionOptions{
		Namespace:  a.Config.Namespace,
		Username:   a.Config.WordfeudUsername,
		PipelineID: a.Config.ExtractionPipeline,
		DataSetID:  a.Config.DataSetID(),
	}
	return extractor.Provision(ctx, a.Store, opts)
}

// Health checks the metric store and Redis. The report lists every checked
// component; the error is the first failure.
func (a *App) Health(ctx context.Context) (map[string]any, error) {
	report := map[string]any{"status": "healthy"}
	var firstErr error
	check := func(name string, err error) {
		if err == nil {
			report[name] = "ok"
			return
		}
		report[name] = err.Error()
		if firstErr == nil {
			firstErr = err
		}
	}

	if db, ok := a.Store.(*repository.Database); ok {
		check("database", db.Health(ctx))
		report["pool"] = db.PoolStats()
		if a.Config.ReportRuns && a.Config.ExtractionPipeline != "" {
			runs, err := db.Pipelines.RecentRuns(ctx, a.Config.ExtractionPipeline, 1)
			check("pipeline_runs", err)
			if len(runs) > 0 {
				report["last_run"] = map[string]any{
					"status": runs[0].Status,
					"at":     runs[0].CreatedAt,
				}
			}
		}
	}
	if a.redis != nil {
		check("redis", a.redis.Health(ctx))
	}

	if firstErr != nil {
		report["status"] = "unhealthy"
	}
	return report, firstErr
}

// Close releases every resource in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
