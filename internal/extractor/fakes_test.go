package extractor

import (
	"context"
	"errors"

	"wordfeud_cdf/extractor/internal/models"
)

type fakeStore struct {
	watermarks map[string]models.Watermark
	existing   map[string]bool
	latestErr  error
	existsErr  error
	insertErr  error

	latestCalls int
	existsCalls int
	inserted    [][]models.SeriesBatch
}

func newFakeStore(namespace, username string) *fakeStore {
	s := &fakeStore{
		watermarks: map[string]models.Watermark{},
		existing:   map[string]bool{},
	}
	for _, m := range models.AllMetrics {
		s.existing[models.ExternalID(namespace, username, m)] = true
	}
	return s
}

func (s *fakeStore) Latest(_ context.Context, externalID string) (models.Watermark, error) {
	s.latestCalls++
	if s.latestErr != nil {
		return models.Watermark{}, s.latestErr
	}
	return s.watermarks[externalID], nil
}

func (s *fakeStore) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.existsCalls++
	if s.existsErr != nil {
		return nil, s.existsErr
	}
	out := map[string]bool{}
	for _, id := range ids {
		if s.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (s *fakeStore) InsertMultiple(_ context.Context, batches []models.SeriesBatch) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, batches)

	// Advance watermarks the way a real store would
	for _, b := range batches {
		last := b.Points[len(b.Points)-1]
		s.watermarks[b.ExternalID] = models.Watermark{Present: true, TimestampMs: last.TimestampMs, Value: last.Value}
	}
	return nil
}

type fakeSource struct {
	all      []models.GameInput
	rated    []models.GameInput
	allErr   error
	ratedErr error
	calls    int
}

func (f *fakeSource) AllGames(context.Context) ([]models.GameInput, error) {
	f.calls++
	return f.all, f.allErr
}

func (f *fakeSource) RatedGames(context.Context) ([]models.GameInput, error) {
	f.calls++
	return f.rated, f.ratedErr
}

type reportedRun struct {
	PipelineID string
	Status     models.RunStatus
	Message    string
}

type fakeReporter struct {
	runs []reportedRun
	err  error
}

func (f *fakeReporter) ReportRun(_ context.Context, pipelineID string, status models.RunStatus, message string) error {
	f.runs = append(f.runs, reportedRun{PipelineID: pipelineID, Status: status, Message: message})
	return f.err
}

type fakeProvisioner struct {
	specs     []models.TimeSeriesSpec
	pipelines []models.PipelineSpec
	err       error
}

func (f *fakeProvisioner) CreateTimeSeries(_ context.Context, specs []models.TimeSeriesSpec) error {
	f.specs = append(f.specs, specs...)
	return f.err
}

func (f *fakeProvisioner) CreatePipeline(_ context.Context, spec models.PipelineSpec) error {
	f.pipelines = append(f.pipelines, spec)
	return f.err
}

var errBoom = errors.New("boom")
