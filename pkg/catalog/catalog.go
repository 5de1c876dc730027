// Package catalog resolves free-text team and tournament names against
// the names seen in the fixture feed.
package catalog

import (
	"context"
	"sync"

	"github.com/phenomenon0/chatbet-agent/pkg/feed"
)

// Default resolution thresholds on the 0-100 similarity scale. Team
// names tolerate looser matches than tournament names.
const (
	TeamThreshold       = 80
	TournamentThreshold = 90
)

// Scope selects which namespace a query resolves against.
type Scope int

const (
	ScopeTeam Scope = iota
	ScopeTournament
)

// Entry is a resolved catalog entry. TournamentID is set for tournament
// entries and for teams it names the tournament the team was first seen
// in.
type Entry struct {
	Name         string
	TournamentID string
}

// Match pairs a resolved entry with its similarity score.
type Match struct {
	Entry
	Score int
}

// Catalog holds the known team and tournament names, in the order the
// feed first produced them.
type Catalog struct {
	store *feed.Store

	mu          sync.RWMutex
	built       bool
	teams       []indexed
	tournaments []indexed
}

type indexed struct {
	entry Entry
	key   string
}

// New returns a catalog backed by the given feed store.
func New(store *feed.Store) *Catalog {
	return &Catalog{store: store}
}

// Populate fills the catalog from the feed store, triggering feed
// population if it has not happened yet. The catalog is rebuilt even
// when population fails, so a degraded empty snapshot resolves to
// nothing rather than leaving the catalog unbuilt.
func (c *Catalog) Populate(ctx context.Context) error {
	err := c.store.Populate(ctx)
	c.Rebuild()
	return err
}

// Refresh swaps in a fresh feed snapshot and rebuilds. On failure the
// previous snapshot and entries keep serving.
func (c *Catalog) Refresh(ctx context.Context) error {
	if err := c.store.Refresh(ctx); err != nil {
		return err
	}
	c.Rebuild()
	return nil
}

// Invalidate drops the feed snapshot and marks the catalog unbuilt so
// the next Populate refetches.
func (c *Catalog) Invalidate() {
	c.store.Invalidate()
	c.mu.Lock()
	c.built = false
	c.mu.Unlock()
}

// Rebuild re-derives the catalog entries from the feed store's current
// snapshot.
func (c *Catalog) Rebuild() {
	fixtures := c.store.Fixtures()
	tournaments := c.store.Tournaments()

	var teams []indexed
	teamSeen := make(map[string]bool)
	addTeam := func(name, tournamentID string) {
		key := Normalize(name)
		if key == "" || teamSeen[key] {
			return
		}
		teamSeen[key] = true
		teams = append(teams, indexed{entry: Entry{Name: name, TournamentID: tournamentID}, key: key})
	}

	var tours []indexed
	tourSeen := make(map[string]bool)
	addTournament := func(name, id string) {
		key := Normalize(name)
		if key == "" || tourSeen[key] {
			return
		}
		tourSeen[key] = true
		tours = append(tours, indexed{entry: Entry{Name: name, TournamentID: id}, key: key})
	}

	for _, t := range tournaments {
		addTournament(t.Name, t.ID)
	}
	for _, f := range fixtures {
		addTeam(f.HomeTeam, f.TournamentID)
		addTeam(f.AwayTeam, f.TournamentID)
		// Fixtures carry tournament names too; they backfill the
		// tournament namespace when the tournament feed came up short.
		addTournament(f.TournamentName, f.TournamentID)
	}

	c.mu.Lock()
	c.teams = teams
	c.tournaments = tours
	c.built = true
	c.mu.Unlock()
}

// Ready reports whether the catalog has been built and holds at least
// one team name.
func (c *Catalog) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.built && len(c.teams) > 0
}

// Teams returns the known team names in first-seen order.
func (c *Catalog) Teams() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.teams))
	for i, t := range c.teams {
		out[i] = t.entry.Name
	}
	return out
}

// Tournaments returns the known tournament entries in first-seen order.
func (c *Catalog) Tournaments() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.tournaments))
	for i, t := range c.tournaments {
		out[i] = t.entry
	}
	return out
}

// Resolve matches a free-text query against the given scope. It returns
// the best-scoring entry at or above the threshold; on tied scores the
// entry seen first in the feed wins. ok is false when nothing clears
// the threshold or the catalog is empty.
func (c *Catalog) Resolve(query string, scope Scope, threshold int) (Match, bool) {
	key := Normalize(query)
	if key == "" {
		return Match{}, false
	}

	c.mu.RLock()
	entries := c.teams
	if scope == ScopeTournament {
		entries = c.tournaments
	}
	c.mu.RUnlock()

	best := Match{Score: -1}
	for _, e := range entries {
		score := Score(key, e.key)
		if score > best.Score {
			best = Match{Entry: e.entry, Score: score}
			if score == 100 {
				break
			}
		}
	}
	if best.Score < threshold {
		return Match{}, false
	}
	return best, true
}

// ResolveTeam resolves a team name at the default team threshold.
func (c *Catalog) ResolveTeam(query string) (Match, bool) {
	return c.Resolve(query, ScopeTeam, TeamThreshold)
}

// ResolveTournament resolves a tournament name at the default
// tournament threshold.
func (c *Catalog) ResolveTournament(query string) (Match, bool) {
	return c.Resolve(query, ScopeTournament, TournamentThreshold)
}
