//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wordfeud_cdf/extractor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests for database operations
// Run with: go test -v -tags=integration ./internal/repository/...

func setupTestDB(t *testing.T) (*Database, context.Context) {
	ctx := context.Background()

	cfg := Config{
		Host:     "localhost",
		Port:     5432,
		Database: "wordfeud_test",
		User:     "wordfeud",
		Password: "wordfeud",
		SSLMode:  "disable",
	}

	db, err := NewDatabase(ctx, cfg)
	require.NoError(t, err, "Failed to connect to test database")

	return db, ctx
}

func teardownTestDB(t *testing.T, db *Database) {
	db.Close()
}

// uniqueUser keeps test runs from colliding on external ids
func uniqueUser(t *testing.T) string {
	return fmt.Sprintf("%s_%d", t.Name(), time.Now().UnixNano())
}

func TestDatabaseConnection(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	err := db.Health(ctx)
	assert.NoError(t, err, "Database health check should pass")

	stats := db.PoolStats()
	assert.NotNil(t, stats, "Should return connection pool stats")
	assert.GreaterOrEqual(t, stats["max_conns"].(int32), int32(1), "Should have at least 1 max connection")
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))
}

func TestTimeSeries_CreateAndExistingIDs(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	user := uniqueUser(t)
	specs := models.TimeSeriesSpecs(models.DefaultNamespace, user, nil)

	require.NoError(t, db.CreateTimeSeries(ctx, specs))
	require.NoError(t, db.CreateTimeSeries(ctx, specs), "Creating twice should be a no-op")

	ids := []string{
		models.ExternalID(models.DefaultNamespace, user, models.MetricRating),
		models.ExternalID(models.DefaultNamespace, user+"_missing", models.MetricRating),
	}
	existing, err := db.ExistingIDs(ctx, ids)
	require.NoError(t, err)
	assert.True(t, existing[ids[0]])
	assert.False(t, existing[ids[1]])
}

func TestDatapoints_InsertAndLatest(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	user := uniqueUser(t)
	require.NoError(t, db.CreateTimeSeries(ctx, models.TimeSeriesSpecs(models.DefaultNamespace, user, nil)))
	rating := models.ExternalID(models.DefaultNamespace, user, models.MetricRating)

	wm, err := db.Latest(ctx, rating)
	require.NoError(t, err)
	assert.False(t, wm.Present, "Empty series has no watermark")

	err = db.InsertMultiple(ctx, []models.SeriesBatch{{
		ExternalID: rating,
		Points: []models.MetricPoint{
			{Metric: models.MetricRating, TimestampMs: 900000, Value: 1490, Metadata: map[string]any{"game_id": "2"}},
			{Metric: models.MetricRating, TimestampMs: 1000000, Value: 1500, Metadata: map[string]any{"game_id": "1"}},
		},
	}})
	require.NoError(t, err)

	wm, err = db.Latest(ctx, rating)
	require.NoError(t, err)
	assert.True(t, wm.Present)
	assert.Equal(t, int64(1000000), wm.TimestampMs)
	assert.Equal(t, 1500.0, wm.Value)

	// Re-inserting the same timestamp replaces the value
	err = db.InsertMultiple(ctx, []models.SeriesBatch{{
		ExternalID: rating,
		Points:     []models.MetricPoint{{Metric: models.MetricRating, TimestampMs: 1000000, Value: 1510}},
	}})
	require.NoError(t, err)

	wm, err = db.Latest(ctx, rating)
	require.NoError(t, err)
	assert.Equal(t, 1510.0, wm.Value)
}

func TestDatapoints_InsertIntoUnknownSeriesFails(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	err := db.InsertMultiple(ctx, []models.SeriesBatch{{
		ExternalID: models.ExternalID(models.DefaultNamespace, uniqueUser(t), models.MetricRating),
		Points:     []models.MetricPoint{{TimestampMs: 1, Value: 1}},
	}})
	assert.Error(t, err)
}

func TestPipelines_ReportRun(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	user := uniqueUser(t)
	pipelineID := "extractors/wordfeud-" + user
	require.NoError(t, db.CreatePipeline(ctx, models.NewPipelineSpec(pipelineID, user, nil)))
	require.NoError(t, db.CreatePipeline(ctx, models.NewPipelineSpec(pipelineID, user, nil)))

	require.NoError(t, db.ReportRun(ctx, pipelineID, models.RunStatusSuccess, ""))
	require.NoError(t, db.ReportRun(ctx, pipelineID, models.RunStatusFailure, "remote_fetch: boom"))

	runs, err := db.Pipelines.RecentRuns(ctx, pipelineID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, models.RunStatusFailure, runs[0].Status)
	assert.Equal(t, "remote_fetch: boom", runs[0].Message)

	err = db.ReportRun(ctx, "extractors/does-not-exist", models.RunStatusSuccess, "")
	assert.Error(t, err)
}
