package wordfeud

import (
	"context"
	"fmt"

	"wordfeud_cdf/extractor/internal/models"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// RuleSet is the dictionary/language a game is played with
type RuleSet int

const (
	RuleSetAmerican  RuleSet = 0
	RuleSetNorwegian RuleSet = 1
	RuleSetDutch     RuleSet = 2
	RuleSetDanish    RuleSet = 3
	RuleSetSwedish   RuleSet = 4
	RuleSetEnglish   RuleSet = 5
	RuleSetSpanish   RuleSet = 6
	RuleSetFrench    RuleSet = 7
)

var ruleSetNames = map[string]RuleSet{
	"RuleSetAmerican":  RuleSetAmerican,
	"RuleSetNorwegian": RuleSetNorwegian,
	"RuleSetDutch":     RuleSetDutch,
	"RuleSetDanish":    RuleSetDanish,
	"RuleSetSwedish":   RuleSetSwedish,
	"RuleSetEnglish":   RuleSetEnglish,
	"RuleSetSpanish":   RuleSetSpanish,
	"RuleSetFrench":    RuleSetFrench,
}

// ParseRuleSet maps a configuration name like "RuleSetNorwegian" to its id
func ParseRuleSet(name string) (RuleSet, error) {
	rs, ok := ruleSetNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown rule set %q", name)
	}
	return rs, nil
}

// BoardType is the board layout a game is played on
type BoardType int

const (
	BoardNormal BoardType = 0
	BoardRandom BoardType = 1
)

// ParseBoardType maps "BoardNormal" / "BoardRandom" to its id
func ParseBoardType(name string) (BoardType, error) {
	switch name {
	case "BoardNormal":
		return BoardNormal, nil
	case "BoardRandom":
		return BoardRandom, nil
	}
	return 0, fmt.Errorf("unknown board type %q", name)
}

// gamesContent keeps games undecoded so one bad record cannot fail the listing
type gamesContent struct {
	Games []json.RawMessage `json:"games"`
}

func (gc gamesContent) inputs() []models.GameInput {
	games := make([]models.GameInput, 0, len(gc.Games))
	for _, raw := range gc.Games {
		games = append(games, models.DecodeGameInput(raw))
	}
	return games
}

// AllGames fetches every game of the logged in account
func (c *Client) AllGames(ctx context.Context) ([]models.GameInput, error) {
	var content gamesContent
	if err := c.call(ctx, pathGames, map[string]any{}, &content); err != nil {
		return nil, fmt.Errorf("failed to fetch games: %w", err)
	}

	log.Debug().Int("count", len(content.Games)).Msg("Games fetched")
	return content.inputs(), nil
}

// RatedGames fetches games annotated with the post-game rating for the
// configured rule set and board type
func (c *Client) RatedGames(ctx context.Context) ([]models.GameInput, error) {
	payload := map[string]any{
		"ruleset":    int(c.ruleSet),
		"board_type": int(c.boardType),
	}

	var content gamesContent
	if err := c.call(ctx, pathRatedGames, payload, &content); err != nil {
		return nil, fmt.Errorf("failed to fetch rated games: %w", err)
	}

	log.Debug().
		Int("count", len(content.Games)).
		Int("ruleset", int(c.ruleSet)).
		Int("board_type", int(c.boardType)).
		Msg("Rated games fetched")
	return content.inputs(), nil
}
