package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/phenomenon0/chatbet-agent/pkg/feed"
	"github.com/phenomenon0/chatbet-agent/pkg/retry"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
)

type fakeSource struct {
	fixtures    []sportsbook.FixtureRecord
	tournaments []sportsbook.TournamentRecord
}

func (f *fakeSource) GetFixtures(ctx context.Context, sportID string) ([]sportsbook.FixtureRecord, error) {
	return f.fixtures, nil
}

func (f *fakeSource) GetTournaments(ctx context.Context, sportID string) ([]sportsbook.TournamentRecord, error) {
	return f.tournaments, nil
}

func fixture(id, home, away, tourID, tourName string) sportsbook.FixtureRecord {
	return sportsbook.FixtureRecord{
		ID:             sportsbook.JSONString(id),
		TournamentID:   sportsbook.JSONString(tourID),
		FixtureDate:    "2025-03-05T20:00:00Z",
		HomeTeam:       sportsbook.TeamData{Name: sportsbook.LocalizedName{EN: home}},
		AwayTeam:       sportsbook.TeamData{Name: sportsbook.LocalizedName{EN: away}},
		TournamentName: sportsbook.LocalizedName{EN: tourName},
	}
}

func builtCatalog(t *testing.T) *Catalog {
	t.Helper()
	src := &fakeSource{
		fixtures: []sportsbook.FixtureRecord{
			fixture("1", "Real Madrid", "FC Barcelona", "77", "La Liga"),
			fixture("2", "Real Sociedad", "Atlético Madrid", "77", "La Liga"),
			fixture("3", "Liverpool", "Manchester City", "88", "Premier League"),
		},
		tournaments: []sportsbook.TournamentRecord{
			{TournamentID: "99", TournamentName: "UEFA Champions League"},
		},
	}
	c := New(feed.NewStore(src))
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return c
}

func TestResolveTeamCaseAndAccents(t *testing.T) {
	c := builtCatalog(t)

	m, ok := c.ResolveTeam("real madrid")
	if !ok || m.Name != "Real Madrid" {
		t.Fatalf("got %+v ok=%v, want Real Madrid", m, ok)
	}
	if m.Score != 100 {
		t.Fatalf("score = %d, want 100", m.Score)
	}

	m, ok = c.ResolveTeam("atletico madrid")
	if !ok || m.Name != "Atlético Madrid" {
		t.Fatalf("got %+v ok=%v, want Atlético Madrid", m, ok)
	}
}

func TestResolveAmbiguousPrefixBelowThreshold(t *testing.T) {
	c := builtCatalog(t)

	// "real" is a prefix of two teams; full-string similarity stays
	// well under the team threshold for both.
	if m, ok := c.ResolveTeam("real"); ok {
		t.Fatalf("expected no match for %q, got %+v", "real", m)
	}
}

func TestResolveFirstSeenWinsOnTie(t *testing.T) {
	src := &fakeSource{
		fixtures: []sportsbook.FixtureRecord{
			fixture("1", "Arsenal FC", "Rovers", "5", "Cup"),
			fixture("2", "Arsenol FC", "Wanderers", "5", "Cup"),
		},
	}
	c := New(feed.NewStore(src))
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	// One edit away from both candidates; the team ingested first wins.
	m, ok := c.Resolve("Arsenyl FC", ScopeTeam, 80)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Name != "Arsenal FC" {
		t.Fatalf("tie broke to %q, want Arsenal FC", m.Name)
	}
}

func TestResolveTournamentThreshold(t *testing.T) {
	c := builtCatalog(t)

	m, ok := c.ResolveTournament("uefa champions league")
	if !ok || m.Name != "UEFA Champions League" || m.TournamentID != "99" {
		t.Fatalf("got %+v ok=%v", m, ok)
	}

	// Tournaments from the fixture feed backfill the namespace.
	m, ok = c.ResolveTournament("la liga")
	if !ok || m.TournamentID != "77" {
		t.Fatalf("got %+v ok=%v, want La Liga id 77", m, ok)
	}

	// The tournament threshold is stricter than the team one.
	if m, ok := c.ResolveTournament("champions"); ok {
		t.Fatalf("expected no match at tournament threshold, got %+v", m)
	}
}

func TestResolveWordOrderInsensitive(t *testing.T) {
	c := builtCatalog(t)

	m, ok := c.ResolveTeam("madrid real")
	if !ok || m.Name != "Real Madrid" {
		t.Fatalf("got %+v ok=%v, want Real Madrid", m, ok)
	}
}

type flakySource struct {
	fakeSource
	fail bool
}

func (f *flakySource) GetFixtures(ctx context.Context, sportID string) ([]sportsbook.FixtureRecord, error) {
	if f.fail {
		return nil, errors.New("upstream down")
	}
	return f.fakeSource.GetFixtures(ctx, sportID)
}

func TestRefreshKeepsEntriesOnFailure(t *testing.T) {
	src := &flakySource{fakeSource: fakeSource{
		fixtures: []sportsbook.FixtureRecord{
			fixture("1", "Real Madrid", "FC Barcelona", "77", "La Liga"),
		},
	}}
	c := New(feed.NewStore(src, feed.WithRetryPolicy(retry.Policy{Attempts: 1})))
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if _, ok := c.ResolveTeam("real madrid"); !ok {
		t.Fatal("resolution failed after populate")
	}

	src.fail = true
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("want refresh error")
	}
	if !c.Ready() {
		t.Fatal("catalog lost readiness on failed refresh")
	}
	if _, ok := c.ResolveTeam("real madrid"); !ok {
		t.Fatal("entries lost on failed refresh")
	}
}

func TestInvalidateForcesRepopulation(t *testing.T) {
	c := builtCatalog(t)

	c.Invalidate()
	if c.Ready() {
		t.Fatal("catalog ready after invalidation")
	}
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if _, ok := c.ResolveTeam("real madrid"); !ok {
		t.Fatal("resolution failed after repopulation")
	}
}

func TestEmptyCatalogResolvesNothing(t *testing.T) {
	store := feed.NewStore(&fakeSource{}, feed.WithRetryPolicy(retry.Policy{Attempts: 1}))
	c := New(store)
	if err := c.Populate(context.Background()); err == nil {
		t.Fatal("expected an error populating from an empty feed")
	}

	if c.Ready() {
		t.Fatal("empty catalog reported ready")
	}
	if m, ok := c.ResolveTeam("Real Madrid"); ok {
		t.Fatalf("empty catalog resolved %+v", m)
	}
}

func TestScoreHelpers(t *testing.T) {
	if got := Ratio("real madrid", "real madrid"); got != 100 {
		t.Fatalf("identical ratio = %d", got)
	}
	if got := Score("real", "real madrid"); got >= TeamThreshold {
		t.Fatalf("prefix score = %d, want < %d", got, TeamThreshold)
	}
	if got := PartialRatio("champions", "uefa champions league"); got != 100 {
		t.Fatalf("partial ratio = %d, want 100", got)
	}
	if got := Normalize("  Atlético   MADRID "); got != "atletico madrid" {
		t.Fatalf("Normalize = %q", got)
	}
}
