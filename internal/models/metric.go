package models

import "fmt"

// DefaultNamespace prefixes every time series external id
const DefaultNamespace = "WORDFEUD"

// Metric is one named numeric series tracked per user
type Metric string

const (
	MetricRating        Metric = "rating"
	MetricGamesPlayed   Metric = "games_played"
	MetricGamesWon      Metric = "games_won"
	MetricWinRate       Metric = "win_rate"
	MetricCurrentStreak Metric = "current_streak"
	MetricBestRating    Metric = "best_rating"
)

// AllMetrics lists every metric in provisioning order
var AllMetrics = []Metric{
	MetricRating,
	MetricGamesPlayed,
	MetricGamesWon,
	MetricWinRate,
	MetricCurrentStreak,
	MetricBestRating,
}

var metricInfo = map[Metric]struct {
	title string
	unit  string
}{
	MetricRating:        {"Rating", "rating"},
	MetricGamesPlayed:   {"Games Played", "count"},
	MetricGamesWon:      {"Games Won", "count"},
	MetricWinRate:       {"Win Rate", "percentage"},
	MetricCurrentStreak: {"Current Streak", "count"},
	MetricBestRating:    {"Best Rating", "rating"},
}

// ExternalID returns the store identifier {namespace}/{username}/{metric}
func ExternalID(namespace, username string, metric Metric) string {
	return fmt.Sprintf("%s/%s/%s", namespace, username, metric)
}

// MetricPoint is one observation to store
type MetricPoint struct {
	Metric      Metric
	TimestampMs int64
	Value       float64
	Metadata    map[string]any
}

// Watermark is the most recently stored point of a metric.
// Present is false when nothing has been stored yet (bootstrap).
type Watermark struct {
	Present     bool
	TimestampMs int64
	Value       float64
}

// SeriesBatch is the set of points appended to one time series
type SeriesBatch struct {
	ExternalID string
	Points     []MetricPoint
}

// TimeSeriesSpec describes a time series to provision
type TimeSeriesSpec struct {
	ExternalID string
	Name       string
	Unit       string
	DataSetID  *int64
}

// TimeSeriesSpecs returns the provisioning specs for every metric of a user
func TimeSeriesSpecs(namespace, username string, dataSetID *int64) []TimeSeriesSpec {
	specs := make([]TimeSeriesSpec, 0, len(AllMetrics))
	for _, m := range AllMetrics {
		info := metricInfo[m]
		specs = append(specs, TimeSeriesSpec{
			ExternalID: ExternalID(namespace, username, m),
			Name:       fmt.Sprintf("Wordfeud %s - %s", info.title, username),
			Unit:       info.unit,
			DataSetID:  dataSetID,
		})
	}
	return specs
}
