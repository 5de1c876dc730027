// Package feed maintains the in-memory snapshot of upstream fixtures and
// tournaments. Population happens once per process, is retried a bounded
// number of times, and exposes a readiness signal for the boundary layer.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/chatbet-agent/pkg/retry"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
)

// DefaultSportID is the upstream identifier for football, the only sport
// the feed carries.
const DefaultSportID = "1"

// Source is the subset of the sportsbook client the feed consumes.
type Source interface {
	GetFixtures(ctx context.Context, sportID string) ([]sportsbook.FixtureRecord, error)
	GetTournaments(ctx context.Context, sportID string) ([]sportsbook.TournamentRecord, error)
}

// Fixture is an immutable snapshot of one scheduled match.
type Fixture struct {
	ID             string
	TournamentID   string
	SportID        string
	HomeTeam       string
	AwayTeam       string
	TournamentName string
	// Kickoff is UTC. The zero value marks an unparseable upstream
	// timestamp; such fixtures are excluded from date queries.
	Kickoff time.Time
}

// Label returns the "Home vs Away" display string for the fixture.
func (f Fixture) Label() string {
	return f.HomeTeam + " vs " + f.AwayTeam
}

// HasKickoff reports whether the fixture carries a usable kickoff time.
func (f Fixture) HasKickoff() bool {
	return !f.Kickoff.IsZero()
}

// Tournament is one tournament known to the upstream.
type Tournament struct {
	ID   string
	Name string
}

// Store holds the fixture/tournament snapshot.
type Store struct {
	source  Source
	sportID string
	policy  retry.Policy
	log     *logrus.Entry
	nowFn   func() time.Time

	mu          sync.RWMutex
	fixtures    []Fixture
	tournaments []Tournament
	populated   bool
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithSportID overrides the sport the snapshot covers.
func WithSportID(id string) StoreOption {
	return func(s *Store) { s.sportID = id }
}

// WithRetryPolicy overrides the population retry policy.
func WithRetryPolicy(p retry.Policy) StoreOption {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the logger used during population.
func WithLogger(log *logrus.Entry) StoreOption {
	return func(s *Store) { s.log = log }
}

// WithNow injects the clock, for tests that pin the assumed year.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.nowFn = now }
}

// NewStore creates an unpopulated store.
func NewStore(source Source, opts ...StoreOption) *Store {
	s := &Store{
		source:  source,
		sportID: DefaultSportID,
		policy:  retry.DefaultPolicy,
		log:     logrus.NewEntry(logrus.StandardLogger()),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Populate fetches the fixture and tournament snapshot. It is idempotent:
// once the store is populated (even degraded-empty after exhausting
// retries) later calls return immediately. Concurrent callers block until
// the first population finishes.
func (s *Store) Populate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.populated {
		return nil
	}

	fixtures, tournaments, err := s.fetch(ctx)

	// Mark populated either way so later requests do not re-trigger the
	// retry loop; an empty snapshot degrades resolution, not the process.
	s.populated = true
	s.fixtures = fixtures
	s.tournaments = tournaments

	if err != nil {
		s.log.WithError(err).Error("feed population exhausted retries")
		return fmt.Errorf("populating feed: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"fixtures":    len(fixtures),
		"tournaments": len(tournaments),
	}).Info("feed populated")
	return nil
}

// Refresh fetches a replacement snapshot and swaps it in only on
// success. A failed refresh keeps the previous snapshot serving.
func (s *Store) Refresh(ctx context.Context) error {
	fixtures, tournaments, err := s.fetch(ctx)
	if err != nil {
		s.log.WithError(err).Warn("feed refresh failed, keeping previous snapshot")
		return fmt.Errorf("refreshing feed: %w", err)
	}

	s.mu.Lock()
	s.populated = true
	s.fixtures = fixtures
	s.tournaments = tournaments
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"fixtures":    len(fixtures),
		"tournaments": len(tournaments),
	}).Info("feed refreshed")
	return nil
}

func (s *Store) fetch(ctx context.Context) ([]Fixture, []Tournament, error) {
	var fixtures []Fixture
	var tournaments []Tournament

	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		records, err := s.source.GetFixtures(ctx, s.sportID)
		if err != nil {
			s.log.WithError(err).Warn("fixture fetch failed")
			return err
		}
		if len(records) == 0 {
			s.log.Warn("fixture feed returned no records")
			return fmt.Errorf("empty fixtures response")
		}

		fixtures = s.parseFixtures(records)

		tourRecords, err := s.source.GetTournaments(ctx, s.sportID)
		if err != nil {
			// Tournaments enrich resolution but fixtures alone are
			// enough to operate; log and continue.
			s.log.WithError(err).Warn("tournament fetch failed")
		}
		tournaments = parseTournaments(tourRecords)
		return nil
	})
	return fixtures, tournaments, err
}

// Invalidate clears the snapshot so the next Populate refetches.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.populated = false
	s.fixtures = nil
	s.tournaments = nil
}

// Populated reports whether population has completed, successfully or
// degraded. This is the boundary layer's cache-ready signal.
func (s *Store) Populated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.populated
}

// Ready reports whether the store holds a usable, non-empty snapshot.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.populated && len(s.fixtures) > 0
}

// Fixtures returns the fixture snapshot.
func (s *Store) Fixtures() []Fixture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fixture, len(s.fixtures))
	copy(out, s.fixtures)
	return out
}

// Tournaments returns the tournament snapshot.
func (s *Store) Tournaments() []Tournament {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tournament, len(s.tournaments))
	copy(out, s.tournaments)
	return out
}

func (s *Store) parseFixtures(records []sportsbook.FixtureRecord) []Fixture {
	year := s.nowFn().UTC().Year()
	fixtures := make([]Fixture, 0, len(records))

	for _, r := range records {
		home := r.HomeTeam.Name.EN
		away := r.AwayTeam.Name.EN
		if home == "" || away == "" {
			continue
		}

		kickoff, err := ParseKickoff(r.FixtureDate, r.StartTime, year)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"fixture": r.ID.String(),
			}).WithError(err).Debug("skipping unparseable kickoff")
			// Keep the fixture: names still feed the catalog.
		}

		sportID := r.SportID.String()
		if sportID == "" {
			sportID = s.sportID
		}

		fixtures = append(fixtures, Fixture{
			ID:             r.ID.String(),
			TournamentID:   r.TournamentID.String(),
			SportID:        sportID,
			HomeTeam:       home,
			AwayTeam:       away,
			TournamentName: r.TournamentName.EN,
			Kickoff:        kickoff,
		})
	}

	return fixtures
}

func parseTournaments(records []sportsbook.TournamentRecord) []Tournament {
	tournaments := make([]Tournament, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(r.TournamentName)
		if name == "" || r.TournamentID.String() == "" {
			continue
		}
		tournaments = append(tournaments, Tournament{
			ID:   r.TournamentID.String(),
			Name: name,
		})
	}
	return tournaments
}

// ParseKickoff normalizes the two upstream timestamp shapes to a UTC
// instant: a full ISO timestamp, or a bare "MM-DD HH:MM" time-of-day that
// assumes the given year.
func ParseKickoff(fixtureDate, startTime string, year int) (time.Time, error) {
	if fixtureDate != "" {
		ts, err := time.Parse(time.RFC3339, fixtureDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing fixture date %q: %w", fixtureDate, err)
		}
		return ts.UTC(), nil
	}

	if startTime != "" {
		full := fmt.Sprintf("%d-%s", year, startTime)
		ts, err := time.Parse("2006-01-02 15:04", full)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing start time %q: %w", startTime, err)
		}
		return ts.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("fixture carries no timestamp")
}
