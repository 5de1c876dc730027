package odds

import (
	"context"
	"fmt"

	"github.com/phenomenon0/chatbet-agent/pkg/catalog"
	"github.com/phenomenon0/chatbet-agent/pkg/feed"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
)

// TeamNotFoundError reports a query the catalog could not resolve.
type TeamNotFoundError struct {
	Query string
}

func (e *TeamNotFoundError) Error() string {
	return fmt.Sprintf("no team matching %q", e.Query)
}

// SameTeamError reports two queries resolving to one team.
type SameTeamError struct {
	Name string
}

func (e *SameTeamError) Error() string {
	return fmt.Sprintf("both teams resolve to %q", e.Name)
}

// FixtureNotFoundError reports a resolved pair with no scheduled
// fixture.
type FixtureNotFoundError struct {
	TeamOne string
	TeamTwo string
}

func (e *FixtureNotFoundError) Error() string {
	return fmt.Sprintf("no fixture between %q and %q", e.TeamOne, e.TeamTwo)
}

// OddsInactiveError reports an upstream odds status other than active.
// Inactive odds are a valid steady state, reported verbatim.
type OddsInactiveError struct {
	Match  string
	Status string
}

func (e *OddsInactiveError) Error() string {
	return fmt.Sprintf("odds for %s are not active (status %q)", e.Match, e.Status)
}

// Source fetches the raw odds payload for one fixture.
type Source interface {
	GetOdds(ctx context.Context, fixtureID, tournamentID, sportID string) (sportsbook.RawOdds, error)
}

// Resolver turns a pair of free-text team names into a normalized odds
// snapshot.
type Resolver struct {
	catalog *catalog.Catalog
	store   *feed.Store
	source  Source
}

// NewResolver wires a resolver over the catalog, fixture store and odds
// source.
func NewResolver(cat *catalog.Catalog, store *feed.Store, source Source) *Resolver {
	return &Resolver{catalog: cat, store: store, source: source}
}

// FindFixture resolves both team queries and locates their scheduled
// fixture, matching home/away in either order.
func (r *Resolver) FindFixture(teamOne, teamTwo string) (feed.Fixture, error) {
	one, ok := r.catalog.ResolveTeam(teamOne)
	if !ok {
		return feed.Fixture{}, &TeamNotFoundError{Query: teamOne}
	}
	two, ok := r.catalog.ResolveTeam(teamTwo)
	if !ok {
		return feed.Fixture{}, &TeamNotFoundError{Query: teamTwo}
	}
	if one.Name == two.Name {
		return feed.Fixture{}, &SameTeamError{Name: one.Name}
	}

	for _, f := range r.store.Fixtures() {
		if (f.HomeTeam == one.Name && f.AwayTeam == two.Name) ||
			(f.HomeTeam == two.Name && f.AwayTeam == one.Name) {
			return f, nil
		}
	}
	return feed.Fixture{}, &FixtureNotFoundError{TeamOne: one.Name, TeamTwo: two.Name}
}

// ForMatch resolves both teams, finds their fixture and returns its
// normalized odds. Argument order does not affect the result: the
// snapshot is always oriented to the fixture's home and away sides.
func (r *Resolver) ForMatch(ctx context.Context, teamOne, teamTwo string) (Snapshot, error) {
	fixture, err := r.FindFixture(teamOne, teamTwo)
	if err != nil {
		return Snapshot{}, err
	}
	return r.ForFixture(ctx, fixture)
}

// ForFixture fetches and normalizes the odds for a known fixture.
func (r *Resolver) ForFixture(ctx context.Context, fixture feed.Fixture) (Snapshot, error) {
	raw, err := r.source.GetOdds(ctx, fixture.ID, fixture.TournamentID, fixture.SportID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching odds for %s: %w", fixture.Label(), err)
	}
	if raw.Status != sportsbook.StatusActive {
		return Snapshot{}, &OddsInactiveError{Match: fixture.Label(), Status: raw.Status}
	}
	return Normalize(fixture, raw), nil
}
