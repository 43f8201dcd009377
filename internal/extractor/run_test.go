package extractor

import (
	"context"
	"strings"
	"testing"

	"wordfeud_cdf/extractor/internal/models"

	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPipeline = "extractors/wordfeud-alice"

func newTestExtractor(source GameSource, store MetricStore, reporter RunReporter) *Extractor {
	return New(source, store, reporter, Options{
		Username:   "alice",
		PipelineID: testPipeline,
		ReportRuns: true,
	})
}

func scenarioSource() *fakeSource {
	return &fakeSource{
		all:   listedGames("won", "lost"),
		rated: []models.GameInput{ratedGame("1", 1000, 1500, 20), ratedGame("2", 900, 1490, 10)},
	}
}

func TestRun_Success(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	reporter := &fakeReporter{}

	err := newTestExtractor(scenarioSource(), store, reporter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(models.AllMetrics), store.latestCalls, "every metric watermark is read")
	require.Len(t, store.inserted, 1)
	require.Len(t, reporter.runs, 1)
	assert.Equal(t, reportedRun{PipelineID: testPipeline, Status: models.RunStatusSuccess}, reporter.runs[0])
}

func TestRun_SecondRunWritesNothing(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	reporter := &fakeReporter{}
	ex := newTestExtractor(scenarioSource(), store, reporter)

	require.NoError(t, ex.Run(context.Background()))
	require.NoError(t, ex.Run(context.Background()))

	assert.Len(t, store.inserted, 1, "unchanged remote games produce no new points")
	require.Len(t, reporter.runs, 2)
	assert.Equal(t, models.RunStatusSuccess, reporter.runs[1].Status)
}

func TestRun_FetchFailureIsReportedAndReturned(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	reporter := &fakeReporter{}
	source := scenarioSource()
	source.ratedErr = errBoom

	err := newTestExtractor(source, store, reporter).Run(context.Background())
	require.Error(t, err)
	assert.True(t, crerr.Is(err, ErrRemoteFetch))
	assert.Equal(t, "remote_fetch", Kind(err))

	assert.Empty(t, store.inserted, "no partial write")
	require.Len(t, reporter.runs, 1)
	assert.Equal(t, models.RunStatusFailure, reporter.runs[0].Status)
	assert.True(t, strings.HasPrefix(reporter.runs[0].Message, "remote_fetch: "), reporter.runs[0].Message)
	assert.Contains(t, reporter.runs[0].Message, "boom")
}

func TestRun_WatermarkReadFailure(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	store.latestErr = errBoom
	reporter := &fakeReporter{}
	source := scenarioSource()

	err := newTestExtractor(source, store, reporter).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "store_read", Kind(err))
	assert.Equal(t, 0, source.calls, "games are not fetched without a watermark")
	require.Len(t, reporter.runs, 1)
	assert.Equal(t, models.RunStatusFailure, reporter.runs[0].Status)
}

func TestRun_InsertFailure(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	store.insertErr = errBoom
	reporter := &fakeReporter{}

	err := newTestExtractor(scenarioSource(), store, reporter).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "store_write", Kind(err))
	require.Len(t, reporter.runs, 1)
	assert.True(t, strings.HasPrefix(reporter.runs[0].Message, "store_write: "))
}

func TestRun_ReporterFailureDoesNotMaskError(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	reporter := &fakeReporter{err: errBoom}
	source := scenarioSource()
	source.allErr = assert.AnError

	err := newTestExtractor(source, store, reporter).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "remote_fetch", Kind(err))
}

func TestRun_ReportSuccessFailure(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")
	reporter := &fakeReporter{err: errBoom}

	err := newTestExtractor(scenarioSource(), store, reporter).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestRun_ConfigurationErrorsBeforeRemoteCalls(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		reporter RunReporter
	}{
		{name: "missing username", opts: Options{PipelineID: testPipeline, ReportRuns: true}, reporter: &fakeReporter{}},
		{name: "missing pipeline", opts: Options{Username: "alice", ReportRuns: true}, reporter: &fakeReporter{}},
		{name: "missing reporter", opts: Options{Username: "alice", PipelineID: testPipeline, ReportRuns: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(models.DefaultNamespace, "alice")
			source := scenarioSource()

			err := New(source, store, tt.reporter, tt.opts).Run(context.Background())
			require.Error(t, err)
			assert.True(t, crerr.Is(err, ErrConfiguration))
			assert.Equal(t, 0, store.latestCalls)
			assert.Equal(t, 0, source.calls)
			if r, ok := tt.reporter.(*fakeReporter); ok {
				assert.Empty(t, r.runs)
			}
		})
	}
}

func TestRun_WithoutReporting(t *testing.T) {
	store := newFakeStore(models.DefaultNamespace, "alice")

	err := New(scenarioSource(), store, nil, Options{Username: "alice"}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, store.inserted, 1)
}

func TestProvision(t *testing.T) {
	p := &fakeProvisioner{}
	dataSet := int64(7)

	err := Provision(context.Background(), p, ProvisionOptions{Username: "alice", PipelineID: testPipeline, DataSetID: &dataSet})
	require.NoError(t, err)

	require.Len(t, p.specs, len(models.AllMetrics))
	assert.Equal(t, "WORDFEUD/alice/rating", p.specs[0].ExternalID)
	assert.Equal(t, "Wordfeud Rating - alice", p.specs[0].Name)
	require.Len(t, p.pipelines, 1)
	assert.Equal(t, testPipeline, p.pipelines[0].ExternalID)
	assert.Equal(t, &dataSet, p.pipelines[0].DataSetID)
}

func TestProvision_Errors(t *testing.T) {
	err := Provision(context.Background(), &fakeProvisioner{}, ProvisionOptions{})
	assert.True(t, crerr.Is(err, ErrConfiguration))

	err = Provision(context.Background(), &fakeProvisioner{err: errBoom}, ProvisionOptions{Username: "alice"})
	assert.Equal(t, "store_write", Kind(err))
}
