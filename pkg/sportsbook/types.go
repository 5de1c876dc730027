// Package sportsbook provides a client for the upstream sports betting API:
// fixtures, tournaments, per-fixture odds and user balances.
package sportsbook

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// JSONString handles upstream ID fields that arrive as either a JSON
// string or a bare number.
type JSONString string

func (j *JSONString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*j = JSONString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*j = JSONString(n.String())
	return nil
}

func (j JSONString) String() string {
	return string(j)
}

// LocalizedName is the upstream's per-language name wrapper. Only the
// English variant is consumed.
type LocalizedName struct {
	EN string `json:"en"`
}

// TeamData wraps a team's localized display name.
type TeamData struct {
	Name LocalizedName `json:"name"`
}

// FixtureRecord is one scheduled match as returned by the fixtures feed.
// Exactly one of FixtureDate (full ISO timestamp) and StartTime
// ("MM-DD HH:MM", year implied) is normally present.
type FixtureRecord struct {
	ID             JSONString    `json:"id"`
	TournamentID   JSONString    `json:"tournament_id"`
	SportID        JSONString    `json:"sport_id"`
	FixtureDate    string        `json:"fixture_date"`
	StartTime      string        `json:"startTime"`
	HomeTeam       TeamData      `json:"home_team_data"`
	AwayTeam       TeamData      `json:"away_team_data"`
	TournamentName LocalizedName `json:"tournament_name"`
}

// FixturesResponse accepts both upstream shapes: a bare array of fixture
// records, or an object with the records under "data".
type FixturesResponse struct {
	Data []FixtureRecord
}

func (r *FixturesResponse) UnmarshalJSON(data []byte) error {
	var list []FixtureRecord
	if err := json.Unmarshal(data, &list); err == nil {
		r.Data = list
		return nil
	}

	var wrapped struct {
		Data []FixtureRecord `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	r.Data = wrapped.Data
	return nil
}

// TournamentRecord is one tournament id/name pair.
type TournamentRecord struct {
	TournamentID   JSONString `json:"tournament_id"`
	TournamentName string     `json:"tournament_name"`
}

// OutcomePrice is one bettable outcome inside a market. Odds is nil when
// the outcome is listed without a price. Name carries the line value for
// over/under and handicap markets.
type OutcomePrice struct {
	Name string           `json:"name"`
	Odds *decimal.Decimal `json:"odds"`
}

// RawOdds is the heterogeneous per-fixture odds payload. A nil market map
// means the market is not offered; a missing outcome key likewise.
type RawOdds struct {
	Status          string                  `json:"status"`
	Result          map[string]OutcomePrice `json:"result"`
	BothTeamsScore  map[string]OutcomePrice `json:"both_teams_to_score"`
	DoubleChance    map[string]OutcomePrice `json:"double_chance"`
	OverUnder       map[string]OutcomePrice `json:"over_under"`
	Handicap        map[string]OutcomePrice `json:"handicap"`
	HalfTimeResult  map[string]OutcomePrice `json:"half_time_result"`
}

// Outcome keys used inside raw market maps.
const (
	KeyHomeTeam       = "homeTeam"
	KeyAwayTeam       = "awayTeam"
	KeyTie            = "tie"
	KeyYes            = "yes"
	KeyNo             = "no"
	KeyOver           = "over"
	KeyUnder          = "under"
	KeyHomeOrDraw     = "homeTeam_or_draw"
	KeyAwayOrDraw     = "awayTeam_or_draw"
	KeyHomeOrAway     = "homeTeam_or_awayTeam"
)

// StatusActive is the upstream status for fixtures with live odds.
const StatusActive = "Active"

// BalanceResponse is the user balance payload.
type BalanceResponse struct {
	Money decimal.Decimal `json:"money"`
}

// Odds extracts the odds for an outcome key, or nil when the market or
// the outcome is not offered.
func Odds(market map[string]OutcomePrice, key string) *decimal.Decimal {
	if market == nil {
		return nil
	}
	outcome, ok := market[key]
	if !ok {
		return nil
	}
	return outcome.Odds
}

// Line extracts the line label for an outcome key, or "" when absent.
func Line(market map[string]OutcomePrice, key string) string {
	if market == nil {
		return ""
	}
	outcome, ok := market[key]
	if !ok {
		return ""
	}
	return outcome.Name
}
