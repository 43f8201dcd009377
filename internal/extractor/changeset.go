package extractor

import (
	"cmp"
	"slices"

	"wordfeud_cdf/extractor/internal/metrics"
	"wordfeud_cdf/extractor/internal/models"

	"github.com/rs/zerolog/log"
)

// Skip reasons
const (
	SkipMalformed = "malformed"
	SkipUnrated   = "unrated"
)

// Skip is a rated game that produced no points
type Skip struct {
	GameID string
	Reason string
	Detail string
}

// ChangeSet is the ordered points per metric that a run appends
type ChangeSet struct {
	Points  map[models.Metric][]models.MetricPoint
	Skipped []Skip
}

// Len returns the total number of points
func (cs ChangeSet) Len() int {
	n := 0
	for _, points := range cs.Points {
		n += len(points)
	}
	return n
}

// IsEmpty reports whether there is nothing to write
func (cs ChangeSet) IsEmpty() bool {
	return cs.Len() == 0
}

type aggregates struct {
	played  int
	won     int
	winRate float64
}

// computeAggregates counts over the full game list. The result does not depend
// on which rated game it is attached to, so it is computed once per build.
func computeAggregates(allGames []models.GameInput) aggregates {
	agg := aggregates{played: len(allGames)}
	for i := range allGames {
		if allGames[i].IsWon() {
			agg.won++
		}
	}
	if agg.played > 0 {
		agg.winRate = float64(agg.won) / float64(agg.played) * 100
	}
	return agg
}

// BuildChangeSet derives the points for every rated game newer than the rating
// watermark. Games that cannot be converted or carry no rating are recorded in
// Skipped and never fail the build.
func BuildChangeSet(allGames, ratedGames []models.GameInput, rating models.Watermark) ChangeSet {
	cs := ChangeSet{Points: make(map[models.Metric][]models.MetricPoint)}

	records := make([]*models.GameRecord, 0, len(ratedGames))
	for i := range ratedGames {
		record, skip := convertRated(&ratedGames[i])
		if skip != nil {
			cs.Skipped = append(cs.Skipped, *skip)
			metrics.RecordSkippedRecord(skip.Reason)
			log.Warn().
				Str("game_id", skip.GameID).
				Str("reason", skip.Reason).
				Str("detail", skip.Detail).
				Msg("Skipping rated game")
			continue
		}

		// Strictly newer only: a game at the watermark is already stored
		if rating.Present && record.TimestampMs() <= rating.TimestampMs {
			continue
		}
		records = append(records, record)
	}

	slices.SortStableFunc(records, func(a, b *models.GameRecord) int {
		return cmp.Compare(a.UpdatedAt, b.UpdatedAt)
	})

	bestRating := 0.0
	if rating.Present {
		bestRating = rating.Value
	}
	agg := computeAggregates(allGames)

	for _, record := range records {
		ts := record.TimestampMs()
		value := float64(*record.RatingAfter)
		gameID := record.ID.String()

		cs.add(models.MetricRating, ts, value, ratingMetadata(record))

		if value > bestRating {
			bestRating = value
			cs.add(models.MetricBestRating, ts, bestRating, map[string]any{"game_id": gameID})
		}

		cs.add(models.MetricGamesPlayed, ts, float64(agg.played), map[string]any{"game_id": gameID})
		cs.add(models.MetricGamesWon, ts, float64(agg.won), map[string]any{"game_id": gameID})
		cs.add(models.MetricWinRate, ts, agg.winRate, map[string]any{"game_id": gameID})
	}

	log.Info().
		Int("rated_games", len(ratedGames)).
		Int("new_games", len(records)).
		Int("skipped", len(cs.Skipped)).
		Int("points", cs.Len()).
		Msg("Change set built")

	return cs
}

func (cs *ChangeSet) add(metric models.Metric, ts int64, value float64, metadata map[string]any) {
	cs.Points[metric] = append(cs.Points[metric], models.MetricPoint{
		Metric:      metric,
		TimestampMs: ts,
		Value:       value,
		Metadata:    metadata,
	})
}

func convertRated(input *models.GameInput) (*models.GameRecord, *Skip) {
	record, err := input.ToGameRecord()
	if err != nil {
		id := ""
		if input.ID != nil {
			id = input.ID.String()
		}
		return nil, &Skip{GameID: id, Reason: SkipMalformed, Detail: err.Error()}
	}
	if !record.IsRated() {
		return nil, &Skip{GameID: record.ID.String(), Reason: SkipUnrated}
	}
	return record, nil
}

// ratingMetadata describes the game behind a rating point. Opponent and result
// are omitted when the local player cannot be identified.
func ratingMetadata(record *models.GameRecord) map[string]any {
	md := map[string]any{
		"game_id":      record.ID.String(),
		"rating_delta": record.RatingDelta,
		"ruleset":      record.Ruleset,
		"board":        record.Board,
		"move_count":   record.MoveCount,
		"created":      record.CreatedAt,
		"updated":      record.UpdatedAt,
	}

	if _, opponent, ok := record.LocalAndOpponent(); ok {
		md["opponent"] = opponent.Username
		md["opponent_score"] = opponent.Score
	}
	if result, ok := record.Outcome(); ok {
		md["result"] = result
	}

	return md
}
