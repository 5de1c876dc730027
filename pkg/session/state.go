// Package session holds per-conversation state with one in-flight turn
// per session id.
package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/chatbet-agent/pkg/bets"
	"github.com/phenomenon0/chatbet-agent/pkg/llm"
	"github.com/phenomenon0/chatbet-agent/pkg/odds"
)

// MatchContext is the last match the conversation looked up, kept so
// follow-up questions can be answered without re-resolving.
type MatchContext struct {
	Match        string
	FixtureID    string
	TournamentID string
	Odds         *odds.Snapshot
}

// MatchContextPatch is a partial MatchContext update. Only non-nil
// fields overwrite; absent fields keep their current value.
type MatchContextPatch struct {
	Match        *string
	FixtureID    *string
	TournamentID *string
	Odds         *odds.Snapshot
}

// ContextPatch is the structured update a tool invocation may attach to
// its result. All fields are optional; an empty patch is a no-op.
type ContextPatch struct {
	MatchContext *MatchContextPatch
	BalanceDelta *decimal.Decimal
	NewBet       *bets.LedgerEntry
}

// Empty reports whether applying the patch would change nothing.
func (p ContextPatch) Empty() bool {
	return p.MatchContext == nil && p.BalanceDelta == nil && p.NewBet == nil
}

// State is the unit of conversational memory for one session id.
// SimulatedBalance changes only through ContextPatch balance deltas;
// Bets is append-only.
type State struct {
	ID               string
	Messages         []llm.Message
	MatchContext     *MatchContext
	SimulatedBalance decimal.Decimal
	Bets             []bets.LedgerEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy safe to mutate without affecting the
// stored state.
func (s *State) Clone() *State {
	out := *s
	out.Messages = append([]llm.Message(nil), s.Messages...)
	out.Bets = append([]bets.LedgerEntry(nil), s.Bets...)
	if s.MatchContext != nil {
		mc := *s.MatchContext
		out.MatchContext = &mc
	}
	return &out
}

// Apply merges a patch into the state. Patch fields win over current
// values, but only for fields the patch explicitly carries: a patch
// with no balance delta and no new bet leaves the balance and ledger
// untouched, and a match-context patch overwrites only its present
// fields.
func (s *State) Apply(p ContextPatch) {
	if p.MatchContext != nil {
		if s.MatchContext == nil {
			s.MatchContext = &MatchContext{}
		}
		if p.MatchContext.Match != nil {
			s.MatchContext.Match = *p.MatchContext.Match
		}
		if p.MatchContext.FixtureID != nil {
			s.MatchContext.FixtureID = *p.MatchContext.FixtureID
		}
		if p.MatchContext.TournamentID != nil {
			s.MatchContext.TournamentID = *p.MatchContext.TournamentID
		}
		if p.MatchContext.Odds != nil {
			s.MatchContext.Odds = p.MatchContext.Odds
		}
	}
	if p.BalanceDelta != nil {
		s.SimulatedBalance = s.SimulatedBalance.Add(*p.BalanceDelta)
	}
	if p.NewBet != nil {
		s.Bets = append(s.Bets, *p.NewBet)
	}
}
