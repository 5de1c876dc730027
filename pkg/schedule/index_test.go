package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/phenomenon0/chatbet-agent/pkg/feed"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
)

type fakeSource struct {
	fixtures []sportsbook.FixtureRecord
}

func (f *fakeSource) GetFixtures(ctx context.Context, sportID string) ([]sportsbook.FixtureRecord, error) {
	return f.fixtures, nil
}

func (f *fakeSource) GetTournaments(ctx context.Context, sportID string) ([]sportsbook.TournamentRecord, error) {
	return nil, nil
}

func record(id, date, home, away, tourID, tourName string) sportsbook.FixtureRecord {
	return sportsbook.FixtureRecord{
		ID:             sportsbook.JSONString(id),
		TournamentID:   sportsbook.JSONString(tourID),
		FixtureDate:    date,
		HomeTeam:       sportsbook.TeamData{Name: sportsbook.LocalizedName{EN: home}},
		AwayTeam:       sportsbook.TeamData{Name: sportsbook.LocalizedName{EN: away}},
		TournamentName: sportsbook.LocalizedName{EN: tourName},
	}
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	src := &fakeSource{fixtures: []sportsbook.FixtureRecord{
		record("3", "2025-03-10T18:00:00Z", "Liverpool", "Chelsea", "88", "Premier League"),
		record("1", "2025-03-02T15:00:00Z", "Real Madrid", "FC Barcelona", "77", "La Liga"),
		record("2", "2025-03-29T20:00:00Z", "Real Madrid", "Liverpool", "99", "UEFA Champions League"),
		// Past fixture, excluded from team lookups.
		record("4", "2025-02-20T20:00:00Z", "Real Madrid", "Sevilla", "77", "La Liga"),
		// No usable timestamp, excluded from range queries.
		record("5", "", "Getafe", "Valencia", "77", "La Liga"),
	}}
	store := feed.NewStore(src, feed.WithNow(func() time.Time { return march1 }))
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return NewIndex(store, WithNow(func() time.Time { return march1 }))
}

func ids(fixtures []feed.Fixture) []string {
	out := make([]string, len(fixtures))
	for i, f := range fixtures {
		out[i] = f.ID
	}
	return out
}

func TestFixturesOnRange(t *testing.T) {
	ix := testIndex(t)

	r, err := ix.ParseQuery("this month")
	if err != nil {
		t.Fatal(err)
	}
	got := ids(ix.FixturesOn(r))
	want := []string{"1", "3", "2"}
	if len(got) != len(want) {
		t.Fatalf("fixtures = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fixtures = %v, want %v", got, want)
		}
	}

	r, err = ix.ParseQuery("end of the month")
	if err != nil {
		t.Fatal(err)
	}
	got = ids(ix.FixturesOn(r))
	if len(got) != 1 || got[0] != "2" {
		t.Fatalf("end of month fixtures = %v, want [2]", got)
	}
}

func TestFixturesForTeamFutureOnlySorted(t *testing.T) {
	ix := testIndex(t)

	got := ids(ix.FixturesForTeam("Real Madrid", ""))
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("fixtures = %v, want [1 2]", got)
	}
}

func TestFixturesForTeamTournamentFilter(t *testing.T) {
	ix := testIndex(t)

	got := ids(ix.FixturesForTeam("Real Madrid", "champions league"))
	if len(got) != 1 || got[0] != "2" {
		t.Fatalf("filtered fixtures = %v, want [2]", got)
	}

	if got := ix.FixturesForTeam("Real Madrid", "serie a"); len(got) != 0 {
		t.Fatalf("filtered fixtures = %v, want none", ids(got))
	}
}

func TestFixturesInTournament(t *testing.T) {
	ix := testIndex(t)

	got := ids(ix.FixturesInTournament("77"))
	// Includes the past fixture and the one without a kickoff.
	if len(got) != 3 {
		t.Fatalf("fixtures = %v, want 3 entries", got)
	}
}
