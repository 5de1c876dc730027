package schedule

import (
	"sort"
	"time"

	"github.com/phenomenon0/chatbet-agent/pkg/catalog"
	"github.com/phenomenon0/chatbet-agent/pkg/feed"
)

// tournamentFilterScore is the partial-match score a fixture's
// tournament name must exceed to pass a free-text tournament filter.
const tournamentFilterScore = 85

// Index answers fixture queries against the feed store's snapshot.
type Index struct {
	store *feed.Store
	nowFn func() time.Time
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithNow injects the clock used for "since today" filtering.
func WithNow(now func() time.Time) IndexOption {
	return func(ix *Index) { ix.nowFn = now }
}

// NewIndex returns an index over the given store.
func NewIndex(store *feed.Store, opts ...IndexOption) *Index {
	ix := &Index{store: store, nowFn: time.Now}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ParseQuery resolves a date query against the index's clock.
func (ix *Index) ParseQuery(query string) (DateRange, error) {
	return ParseDateQuery(query, ix.nowFn())
}

// FixturesOn returns the fixtures whose kickoff falls in the range,
// ascending by kickoff. Fixtures without a parseable kickoff are
// excluded.
func (ix *Index) FixturesOn(r DateRange) []feed.Fixture {
	var out []feed.Fixture
	for _, f := range ix.store.Fixtures() {
		if f.HasKickoff() && r.Contains(f.Kickoff) {
			out = append(out, f)
		}
	}
	sortByKickoff(out)
	return out
}

// FixturesForTeam returns upcoming fixtures involving the canonical
// team name, from the start of today onward, ascending by kickoff.
// A non-empty tournamentFilter keeps only fixtures whose tournament
// name fuzzily matches it.
func (ix *Index) FixturesForTeam(canonicalName, tournamentFilter string) []feed.Fixture {
	team := catalog.Normalize(canonicalName)
	filter := catalog.Normalize(tournamentFilter)

	now := ix.nowFn().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var out []feed.Fixture
	for _, f := range ix.store.Fixtures() {
		if !f.HasKickoff() || f.Kickoff.Before(today) {
			continue
		}
		if catalog.Normalize(f.HomeTeam) != team && catalog.Normalize(f.AwayTeam) != team {
			continue
		}
		if filter != "" && catalog.PartialRatio(filter, catalog.Normalize(f.TournamentName)) <= tournamentFilterScore {
			continue
		}
		out = append(out, f)
	}
	sortByKickoff(out)
	return out
}

// FixturesInTournament returns the fixtures carrying the given upstream
// tournament id, ascending by kickoff.
func (ix *Index) FixturesInTournament(tournamentID string) []feed.Fixture {
	var out []feed.Fixture
	for _, f := range ix.store.Fixtures() {
		if f.TournamentID == tournamentID {
			out = append(out, f)
		}
	}
	sortByKickoff(out)
	return out
}

func sortByKickoff(fixtures []feed.Fixture) {
	sort.SliceStable(fixtures, func(i, j int) bool {
		return fixtures[i].Kickoff.Before(fixtures[j].Kickoff)
	})
}
