// Package repository is the PostgreSQL metric store: time series, datapoints
// and extraction pipeline runs kept in a local database.
package repository

import (
	"context"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const backend = "postgres"

// Database holds the database connection pool and provides access to repositories
type Database struct {
	Pool *pgxpool.Pool

	// Repositories
	TimeSeries *TimeSeriesRepository
	Datapoints *DatapointRepository
	Pipelines  *PipelineRepository
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDatabase creates a new database connection pool, ensures the schema and initializes repositories
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// A single extractor run needs very few connections
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Successfully connected to database")

	db := &Database{
		Pool: pool,
	}

	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	db.TimeSeries = &TimeSeriesRepository{db: db}
	db.Datapoints = &DatapointRepository{db: db}
	db.Pipelines = &PipelineRepository{db: db}

	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// PoolStats returns database pool statistics
func (db *Database) PoolStats() map[string]interface{} {
	stat := db.Pool.Stat()
	return map[string]interface{}{
		"total_conns":    stat.TotalConns(),
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
	}
}

// The methods below let *Database serve as the extractor's metric store,
// run reporter and provisioner.

// Latest returns the most recent datapoint of a series
func (db *Database) Latest(ctx context.Context, externalID string) (models.Watermark, error) {
	return db.Datapoints.Latest(ctx, externalID)
}

// ExistingIDs returns which of the given series exist
func (db *Database) ExistingIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	return db.TimeSeries.ExistingIDs(ctx, externalIDs)
}

// InsertMultiple writes datapoints for several series in one transaction
func (db *Database) InsertMultiple(ctx context.Context, batches []models.SeriesBatch) error {
	return db.Datapoints.InsertMultiple(ctx, batches)
}

// CreateTimeSeries creates the series that do not exist yet
func (db *Database) CreateTimeSeries(ctx context.Context, specs []models.TimeSeriesSpec) error {
	return db.TimeSeries.Create(ctx, specs)
}

// CreatePipeline creates the extraction pipeline if it does not exist yet
func (db *Database) CreatePipeline(ctx context.Context, spec models.PipelineSpec) error {
	return db.Pipelines.Create(ctx, spec)
}

// ReportRun records an extraction pipeline run
func (db *Database) ReportRun(ctx context.Context, pipelineID string, status models.RunStatus, message string) error {
	return db.Pipelines.ReportRun(ctx, pipelineID, status, message)
}
