// Package odds locates fixtures for team pairs and normalizes the
// upstream's heterogeneous market payloads into one canonical snapshot.
package odds

import (
	"github.com/shopspring/decimal"

	"github.com/phenomenon0/chatbet-agent/pkg/catalog"
	"github.com/phenomenon0/chatbet-agent/pkg/feed"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
)

// ResultMarket is a three-way result market. Nil means the outcome is
// not offered, which is distinct from odds of zero.
type ResultMarket struct {
	Home *decimal.Decimal
	Draw *decimal.Decimal
	Away *decimal.Decimal
}

// YesNoMarket is a two-way yes/no market.
type YesNoMarket struct {
	Yes *decimal.Decimal
	No  *decimal.Decimal
}

// DoubleChanceMarket covers the three two-outcome combinations.
type DoubleChanceMarket struct {
	HomeOrDraw *decimal.Decimal
	AwayOrDraw *decimal.Decimal
	HomeOrAway *decimal.Decimal
}

// LineMarket is an over/under style market with its line value as the
// upstream publishes it.
type LineMarket struct {
	Line  string
	Over  *decimal.Decimal
	Under *decimal.Decimal
}

// HandicapMarket is a three-way market adjusted by a line.
type HandicapMarket struct {
	Line string
	Home *decimal.Decimal
	Draw *decimal.Decimal
	Away *decimal.Decimal
}

// Snapshot is the normalized view of one fixture's markets at fetch
// time.
type Snapshot struct {
	Fixture        feed.Fixture
	Result         ResultMarket
	BothTeamsScore YesNoMarket
	DoubleChance   DoubleChanceMarket
	OverUnder      LineMarket
	Handicap       HandicapMarket
	HalfTimeResult ResultMarket
}

// OutcomeOdds looks up the odds for a named outcome across the
// snapshot's markets. Recognized names (case-insensitive): home, draw,
// away, yes, no, over, under, home or draw, away or draw, home or away,
// or either team's name. ok is false when the name is unknown or the
// outcome is not offered.
func (s Snapshot) OutcomeOdds(outcome string) (*decimal.Decimal, bool) {
	key := normalizeOutcome(outcome)
	if key == "" {
		return nil, false
	}
	var leaf *decimal.Decimal
	switch key {
	case "home", normalizeOutcome(s.Fixture.HomeTeam):
		leaf = s.Result.Home
	case "draw", "tie":
		leaf = s.Result.Draw
	case "away", normalizeOutcome(s.Fixture.AwayTeam):
		leaf = s.Result.Away
	case "yes", "both teams to score":
		leaf = s.BothTeamsScore.Yes
	case "no":
		leaf = s.BothTeamsScore.No
	case "over":
		leaf = s.OverUnder.Over
	case "under":
		leaf = s.OverUnder.Under
	case "home or draw":
		leaf = s.DoubleChance.HomeOrDraw
	case "away or draw", "draw or away":
		leaf = s.DoubleChance.AwayOrDraw
	case "home or away":
		leaf = s.DoubleChance.HomeOrAway
	default:
		return nil, false
	}
	if leaf == nil {
		return nil, false
	}
	return leaf, true
}

func normalizeOutcome(s string) string {
	return catalog.Normalize(s)
}

// Normalize maps a raw upstream odds payload onto a snapshot for the
// given fixture. Pure: the same raw input always yields the same
// snapshot.
func Normalize(fixture feed.Fixture, raw sportsbook.RawOdds) Snapshot {
	return Snapshot{
		Fixture: fixture,
		Result: ResultMarket{
			Home: sportsbook.Odds(raw.Result, sportsbook.KeyHomeTeam),
			Draw: sportsbook.Odds(raw.Result, sportsbook.KeyTie),
			Away: sportsbook.Odds(raw.Result, sportsbook.KeyAwayTeam),
		},
		BothTeamsScore: YesNoMarket{
			Yes: sportsbook.Odds(raw.BothTeamsScore, sportsbook.KeyYes),
			No:  sportsbook.Odds(raw.BothTeamsScore, sportsbook.KeyNo),
		},
		DoubleChance: DoubleChanceMarket{
			HomeOrDraw: sportsbook.Odds(raw.DoubleChance, sportsbook.KeyHomeOrDraw),
			AwayOrDraw: sportsbook.Odds(raw.DoubleChance, sportsbook.KeyAwayOrDraw),
			HomeOrAway: sportsbook.Odds(raw.DoubleChance, sportsbook.KeyHomeOrAway),
		},
		OverUnder: LineMarket{
			Line:  sportsbook.Line(raw.OverUnder, sportsbook.KeyOver),
			Over:  sportsbook.Odds(raw.OverUnder, sportsbook.KeyOver),
			Under: sportsbook.Odds(raw.OverUnder, sportsbook.KeyUnder),
		},
		Handicap: HandicapMarket{
			Line: sportsbook.Line(raw.Handicap, sportsbook.KeyHomeTeam),
			Home: sportsbook.Odds(raw.Handicap, sportsbook.KeyHomeTeam),
			Draw: sportsbook.Odds(raw.Handicap, sportsbook.KeyTie),
			Away: sportsbook.Odds(raw.Handicap, sportsbook.KeyAwayTeam),
		},
		HalfTimeResult: ResultMarket{
			Home: sportsbook.Odds(raw.HalfTimeResult, sportsbook.KeyHomeTeam),
			Draw: sportsbook.Odds(raw.HalfTimeResult, sportsbook.KeyTie),
			Away: sportsbook.Odds(raw.HalfTimeResult, sportsbook.KeyAwayTeam),
		},
	}
}
