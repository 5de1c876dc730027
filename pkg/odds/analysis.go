package odds

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/chatbet-agent/pkg/feed"
	"github.com/phenomenon0/chatbet-agent/pkg/schedule"
)

// Analysis errors. A range with no fixtures is distinct from one whose
// fixtures all lack usable odds.
var (
	ErrNoFixturesInRange = errors.New("no fixtures in the requested range")
	ErrNoAnalyzableOdds  = errors.New("no fixtures in range have usable odds")
)

// Pick is one side of one fixture with its match-result odds.
type Pick struct {
	Team  string
	Match string
	Odds  decimal.Decimal
}

// Competitive is the fixture with the smallest gap between its two
// sides' match-result odds.
type Competitive struct {
	Match string
	Gap   decimal.Decimal
}

// Analysis holds the three extrema for a date range, computed fresh per
// query.
type Analysis struct {
	Range           schedule.DateRange
	Fixtures        int
	Safest          Pick
	Riskiest        Pick
	MostCompetitive Competitive
}

// Analyzer scans a date range of fixtures and their odds.
type Analyzer struct {
	index    *schedule.Index
	resolver *Resolver
	log      *logrus.Entry
}

// NewAnalyzer wires an analyzer over the schedule index and odds
// resolver.
func NewAnalyzer(index *schedule.Index, resolver *Resolver, log *logrus.Entry) *Analyzer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Analyzer{index: index, resolver: resolver, log: log}
}

// Analyze resolves the date query and computes the safest pick (lowest
// odds on either side), riskiest pick (highest odds) and most
// competitive match (smallest gap between sides) across all fixtures in
// range with active match-result odds. Fixtures whose odds cannot be
// fetched are skipped, not fatal.
func (a *Analyzer) Analyze(ctx context.Context, dateQuery string) (Analysis, error) {
	r, err := a.index.ParseQuery(dateQuery)
	if err != nil {
		return Analysis{}, err
	}
	return a.AnalyzeRange(ctx, r)
}

// AnalyzeRange is Analyze for an already-resolved range.
func (a *Analyzer) AnalyzeRange(ctx context.Context, r schedule.DateRange) (Analysis, error) {
	fixtures := a.index.FixturesOn(r)
	if len(fixtures) == 0 {
		return Analysis{}, ErrNoFixturesInRange
	}

	out := Analysis{Range: r, Fixtures: len(fixtures)}
	analyzed := 0
	for _, f := range fixtures {
		snap, err := a.resolver.ForFixture(ctx, f)
		if err != nil {
			a.log.WithError(err).WithField("fixture", f.ID).Debug("skipping fixture")
			continue
		}
		home, away := snap.Result.Home, snap.Result.Away
		if home == nil || away == nil {
			continue
		}
		analyzed++
		out.consider(f, f.HomeTeam, *home)
		out.consider(f, f.AwayTeam, *away)

		gap := home.Sub(*away).Abs()
		if out.MostCompetitive.Match == "" || gap.LessThan(out.MostCompetitive.Gap) {
			out.MostCompetitive = Competitive{Match: f.Label(), Gap: gap}
		}
	}
	if analyzed == 0 {
		return Analysis{}, ErrNoAnalyzableOdds
	}
	return out, nil
}

// consider folds one side's odds into the safest/riskiest extrema. The
// first side seen seeds both, so a single-fixture range still produces
// populated results.
func (an *Analysis) consider(f feed.Fixture, team string, odds decimal.Decimal) {
	if an.Safest.Match == "" || odds.LessThan(an.Safest.Odds) {
		an.Safest = Pick{Team: team, Match: f.Label(), Odds: odds}
	}
	if an.Riskiest.Match == "" || odds.GreaterThan(an.Riskiest.Odds) {
		an.Riskiest = Pick{Team: team, Match: f.Label(), Odds: odds}
	}
}
