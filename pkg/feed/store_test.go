package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phenomenon0/chatbet-agent/pkg/retry"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
)

type fakeSource struct {
	fixtures     []sportsbook.FixtureRecord
	fixturesErr  error
	tournaments  []sportsbook.TournamentRecord
	fetchCalls   int32
	failuresLeft int32
}

func (f *fakeSource) GetFixtures(ctx context.Context, sportID string) ([]sportsbook.FixtureRecord, error) {
	atomic.AddInt32(&f.fetchCalls, 1)
	if atomic.AddInt32(&f.failuresLeft, -1) >= 0 {
		return nil, errors.New("upstream down")
	}
	if f.fixturesErr != nil {
		return nil, f.fixturesErr
	}
	return f.fixtures, nil
}

func (f *fakeSource) GetTournaments(ctx context.Context, sportID string) ([]sportsbook.TournamentRecord, error) {
	return f.tournaments, nil
}

func record(id, home, away, tournament, fixtureDate, startTime string) sportsbook.FixtureRecord {
	return sportsbook.FixtureRecord{
		ID:             sportsbook.JSONString(id),
		TournamentID:   sportsbook.JSONString("t-" + id),
		SportID:        sportsbook.JSONString("1"),
		FixtureDate:    fixtureDate,
		StartTime:      startTime,
		HomeTeam:       sportsbook.TeamData{Name: sportsbook.LocalizedName{EN: home}},
		AwayTeam:       sportsbook.TeamData{Name: sportsbook.LocalizedName{EN: away}},
		TournamentName: sportsbook.LocalizedName{EN: tournament},
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestPopulate_ParsesBothTimestampShapes(t *testing.T) {
	source := &fakeSource{
		fixtures: []sportsbook.FixtureRecord{
			record("1", "Napoli", "Pisa", "Serie A", "2025-03-10T18:00:00Z", ""),
			record("2", "Barcelona", "Getafe", "La Liga", "", "03-15 20:30"),
			record("3", "Lyon", "Nice", "Ligue 1", "", "not a time"),
		},
	}

	store := NewStore(source, WithNow(fixedNow))
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	fixtures := store.Fixtures()
	if len(fixtures) != 3 {
		t.Fatalf("Expected 3 fixtures (unparseable kickoff kept for catalog), got %d", len(fixtures))
	}

	if !fixtures[0].Kickoff.Equal(time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected ISO kickoff: %s", fixtures[0].Kickoff)
	}
	if !fixtures[1].Kickoff.Equal(time.Date(2025, 3, 15, 20, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected startTime kickoff: %s", fixtures[1].Kickoff)
	}
	if fixtures[2].HasKickoff() {
		t.Error("Unparseable timestamp should leave kickoff zero")
	}
	if fixtures[0].Label() != "Napoli vs Pisa" {
		t.Errorf("Unexpected label: %q", fixtures[0].Label())
	}
}

func TestPopulate_RetriesThenSucceeds(t *testing.T) {
	source := &fakeSource{
		failuresLeft: 2,
		fixtures: []sportsbook.FixtureRecord{
			record("1", "Napoli", "Pisa", "Serie A", "2025-03-10T18:00:00Z", ""),
		},
	}

	store := NewStore(source,
		WithNow(fixedNow),
		WithRetryPolicy(retry.Policy{Attempts: 3, Backoff: time.Millisecond}))
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	if got := atomic.LoadInt32(&source.fetchCalls); got != 3 {
		t.Errorf("Expected 3 fetch attempts, got %d", got)
	}
	if !store.Ready() {
		t.Error("Store should be ready after successful population")
	}
}

func TestPopulate_DegradesToEmptyAfterExhaustion(t *testing.T) {
	source := &fakeSource{failuresLeft: 100}

	store := NewStore(source,
		WithNow(fixedNow),
		WithRetryPolicy(retry.Policy{Attempts: 2, Backoff: time.Millisecond}))
	if err := store.Populate(context.Background()); err == nil {
		t.Fatal("Expected population error")
	}

	if !store.Populated() {
		t.Error("Store should be marked populated (degraded) after exhausting retries")
	}
	if store.Ready() {
		t.Error("Degraded store must not report ready")
	}

	// A second Populate must not retrigger fetching.
	before := atomic.LoadInt32(&source.fetchCalls)
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Idempotent Populate returned error: %v", err)
	}
	if atomic.LoadInt32(&source.fetchCalls) != before {
		t.Error("Populate on a populated store must not refetch")
	}
}

func TestInvalidateAllowsRepopulation(t *testing.T) {
	source := &fakeSource{
		fixtures: []sportsbook.FixtureRecord{
			record("1", "Napoli", "Pisa", "Serie A", "2025-03-10T18:00:00Z", ""),
		},
	}
	store := NewStore(source, WithNow(fixedNow))
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	store.Invalidate()
	if store.Populated() {
		t.Error("Invalidate should clear the populated flag")
	}
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Repopulation failed: %v", err)
	}
	if !store.Ready() {
		t.Error("Store should be ready after repopulation")
	}
}

func TestRefreshKeepsSnapshotOnFailure(t *testing.T) {
	source := &fakeSource{
		fixtures: []sportsbook.FixtureRecord{
			record("1", "Napoli", "Pisa", "Serie A", "2025-03-10T18:00:00Z", ""),
		},
	}
	store := NewStore(source,
		WithNow(fixedNow),
		WithRetryPolicy(retry.Policy{Attempts: 1}))
	if err := store.Populate(context.Background()); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(store.Fixtures()) != 1 {
		t.Fatalf("got %d fixtures after populate", len(store.Fixtures()))
	}

	// A failed refresh must leave the previous snapshot serving.
	source.failuresLeft = 5
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("want refresh error")
	}
	if !store.Populated() || len(store.Fixtures()) != 1 {
		t.Fatalf("snapshot lost on failed refresh: populated=%v fixtures=%d",
			store.Populated(), len(store.Fixtures()))
	}

	// Once the upstream recovers, the next refresh swaps in new data.
	source.failuresLeft = 0
	source.fixtures = append(source.fixtures,
		record("2", "Barcelona", "Getafe", "La Liga", "2025-03-12T20:00:00Z", ""))
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(store.Fixtures()) != 2 {
		t.Fatalf("got %d fixtures after refresh", len(store.Fixtures()))
	}
}

func TestParseKickoff_NoTimestamp(t *testing.T) {
	if _, err := ParseKickoff("", "", 2025); err == nil {
		t.Fatal("Expected error for fixture with no timestamp")
	}
}
