package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// ErrMalformedRecord is returned when a raw game payload cannot be turned into a GameRecord
var ErrMalformedRecord = errors.New("malformed game record")

// GameResultWon is the server-provided result string for a won game
const GameResultWon = "won"

// GameID is the opaque Wordfeud game identifier.
// The API sends it as a number, older payloads as a string; both are accepted.
type GameID string

// UnmarshalJSON accepts both quoted and bare identifiers
func (id *GameID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid game id %s: %w", data, err)
		}
		*id = GameID(s)
		return nil
	}
	*id = GameID(data)
	return nil
}

// String returns the identifier as a string
func (id GameID) String() string {
	return string(id)
}

// GameRecord represents a finished Wordfeud game
type GameRecord struct {
	ID          GameID
	CreatedAt   int64 // epoch seconds
	UpdatedAt   int64 // epoch seconds, authoritative completion time
	RatingAfter *int
	RatingDelta int
	Players     []Player
	Ruleset     int
	Board       int
	MoveCount   int
	Result      string
}

// Player is one participant of a game
type Player struct {
	Username string
	Score    int
	IsLocal  bool
}

// PlayerInput is a player as returned by the Wordfeud API
type PlayerInput struct {
	Username *string `json:"username,omitempty"`
	Score    *int    `json:"score,omitempty"`
	IsLocal  *bool   `json:"is_local,omitempty"`
}

// GameInput is used for decoding games from the Wordfeud API.
// Every field the server may omit is a pointer.
type GameInput struct {
	ID          *GameID       `json:"id,omitempty"`
	Created     *float64      `json:"created,omitempty"`
	Updated     *float64      `json:"updated,omitempty"`
	RatingAfter *int          `json:"rating_after,omitempty"`
	RatingDelta *int          `json:"rating_delta,omitempty"`
	Players     []PlayerInput `json:"players"`
	Ruleset     *int          `json:"ruleset,omitempty"`
	Board       *int          `json:"board,omitempty"`
	MoveCount   *int          `json:"move_count,omitempty"`
	Result      *string       `json:"result,omitempty"`

	decodeErr error
}

// DecodeGameInput decodes one element of a games listing. A payload that does
// not decode still yields a GameInput carrying whatever id could be read;
// ToGameRecord then reports it as malformed.
func DecodeGameInput(raw []byte) GameInput {
	var gi GameInput
	if err := json.Unmarshal(raw, &gi); err != nil {
		var ident struct {
			ID *GameID `json:"id"`
		}
		_ = json.Unmarshal(raw, &ident)
		return GameInput{ID: ident.ID, decodeErr: err}
	}
	return gi
}

// ToGameRecord validates the API payload and converts it to a GameRecord.
// Errors wrap ErrMalformedRecord.
func (gi *GameInput) ToGameRecord() (*GameRecord, error) {
	if gi.decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, gi.decodeErr)
	}
	if gi.ID == nil || *gi.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if gi.Updated == nil || int64(*gi.Updated) <= 0 {
		return nil, fmt.Errorf("%w: game %s has no usable updated timestamp", ErrMalformedRecord, *gi.ID)
	}

	record := &GameRecord{
		ID:          *gi.ID,
		UpdatedAt:   int64(*gi.Updated),
		RatingAfter: gi.RatingAfter,
		Players:     make([]Player, 0, len(gi.Players)),
	}

	if gi.Created != nil {
		record.CreatedAt = int64(*gi.Created)
	}
	if gi.RatingDelta != nil {
		record.RatingDelta = *gi.RatingDelta
	}
	if gi.Ruleset != nil {
		record.Ruleset = *gi.Ruleset
	}
	if gi.Board != nil {
		record.Board = *gi.Board
	}
	if gi.MoveCount != nil {
		record.MoveCount = *gi.MoveCount
	}
	if gi.Result != nil {
		record.Result = *gi.Result
	}

	// Deleted or anonymous accounts come back without a username
	for _, pi := range gi.Players {
		var player Player
		if pi.Username != nil {
			player.Username = *pi.Username
		}
		if pi.Score != nil {
			player.Score = *pi.Score
		}
		if pi.IsLocal != nil {
			player.IsLocal = *pi.IsLocal
		}
		record.Players = append(record.Players, player)
	}

	return record, nil
}

// IsWon reports whether the server marked the game as won
func (gi *GameInput) IsWon() bool {
	return gi.Result != nil && *gi.Result == GameResultWon
}

// TimestampMs returns the completion time in epoch milliseconds
func (g *GameRecord) TimestampMs() int64 {
	return g.UpdatedAt * 1000
}

// IsRated returns true if the game carries a post-game rating
func (g *GameRecord) IsRated() bool {
	return g.RatingAfter != nil
}

// LocalAndOpponent returns the local player and the opponent.
// ok is false unless the game has two players, exactly one of them local,
// and both carry a username.
func (g *GameRecord) LocalAndOpponent() (local, opponent Player, ok bool) {
	if len(g.Players) != 2 {
		return Player{}, Player{}, false
	}
	switch {
	case g.Players[0].IsLocal && !g.Players[1].IsLocal:
		local, opponent = g.Players[0], g.Players[1]
	case g.Players[1].IsLocal && !g.Players[0].IsLocal:
		local, opponent = g.Players[1], g.Players[0]
	default:
		return Player{}, Player{}, false
	}
	if local.Username == "" || opponent.Username == "" {
		return Player{}, Player{}, false
	}
	return local, opponent, true
}

// Outcome derives won/lost/tied from the local player's perspective
func (g *GameRecord) Outcome() (string, bool) {
	local, opponent, ok := g.LocalAndOpponent()
	if !ok {
		return "", false
	}
	switch {
	case local.Score > opponent.Score:
		return "won", true
	case local.Score < opponent.Score:
		return "lost", true
	default:
		return "tied", true
	}
}
