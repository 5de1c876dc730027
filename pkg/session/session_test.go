package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/chatbet-agent/pkg/bets"
	"github.com/phenomenon0/chatbet-agent/pkg/llm"
)

func strptr(s string) *string { return &s }

func decptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestApplyEmptyPatchIsNoOp(t *testing.T) {
	state := &State{
		ID:               "s1",
		SimulatedBalance: decimal.NewFromInt(1000),
		MatchContext:     &MatchContext{Match: "Real Madrid vs FC Barcelona", FixtureID: "1"},
		Bets:             []bets.LedgerEntry{{ID: "bet-1"}},
	}

	state.Apply(ContextPatch{})

	if !state.SimulatedBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance changed to %s", state.SimulatedBalance)
	}
	if len(state.Bets) != 1 {
		t.Fatalf("bets changed: %+v", state.Bets)
	}
	if state.MatchContext.Match != "Real Madrid vs FC Barcelona" {
		t.Fatalf("match context changed: %+v", state.MatchContext)
	}
}

func TestApplyOverwritesOnlyPresentFields(t *testing.T) {
	state := &State{
		SimulatedBalance: decimal.NewFromInt(1000),
		MatchContext:     &MatchContext{Match: "Real Madrid vs FC Barcelona", FixtureID: "1", TournamentID: "77"},
	}

	state.Apply(ContextPatch{
		MatchContext: &MatchContextPatch{Match: strptr("Liverpool vs Chelsea"), FixtureID: strptr("2")},
	})

	if state.MatchContext.Match != "Liverpool vs Chelsea" || state.MatchContext.FixtureID != "2" {
		t.Fatalf("patched fields not applied: %+v", state.MatchContext)
	}
	if state.MatchContext.TournamentID != "77" {
		t.Fatalf("absent field overwritten: %+v", state.MatchContext)
	}
}

func TestApplyBalanceDeltaAndLedger(t *testing.T) {
	state := &State{SimulatedBalance: decimal.NewFromInt(1000)}

	state.Apply(ContextPatch{
		BalanceDelta: decptr("-100"),
		NewBet:       &bets.LedgerEntry{ID: "bet-1", Amount: decimal.NewFromInt(100)},
	})

	if !state.SimulatedBalance.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("balance = %s, want 900", state.SimulatedBalance)
	}
	if len(state.Bets) != 1 || state.Bets[0].ID != "bet-1" {
		t.Fatalf("bets = %+v", state.Bets)
	}
}

type fakeBalance struct {
	balance decimal.Decimal
	err     error
	calls   int
}

func (f *fakeBalance) CurrentBalance(ctx context.Context) (decimal.Decimal, error) {
	f.calls++
	return f.balance, f.err
}

func TestBeginSeedsBalanceOnce(t *testing.T) {
	src := &fakeBalance{balance: decimal.RequireFromString("1000.50")}
	store := NewStore(WithBalanceSource(src))

	turn := store.Begin(context.Background(), "s1")
	if !turn.State.SimulatedBalance.Equal(decimal.RequireFromString("1000.50")) {
		t.Fatalf("seeded balance = %s", turn.State.SimulatedBalance)
	}
	turn.Commit()

	store.Begin(context.Background(), "s1").Discard()
	if src.calls != 1 {
		t.Fatalf("balance lookups = %d, want 1", src.calls)
	}
}

func TestBeginFallsBackToDefaultBalance(t *testing.T) {
	store := NewStore(WithBalanceSource(&fakeBalance{err: errors.New("upstream down")}))

	turn := store.Begin(context.Background(), "s1")
	defer turn.Discard()
	if !turn.State.SimulatedBalance.Equal(DefaultStartingBalance) {
		t.Fatalf("balance = %s, want default", turn.State.SimulatedBalance)
	}
}

func TestOnCreateFiresOncePerSession(t *testing.T) {
	store := NewStore()
	var created []string
	store.OnCreate(func(sessionID string) { created = append(created, sessionID) })

	store.Begin(context.Background(), "s1").Commit()
	store.Begin(context.Background(), "s1").Discard()
	store.Begin(context.Background(), "s2").Commit()

	if len(created) != 2 || created[0] != "s1" || created[1] != "s2" {
		t.Fatalf("created = %v, want [s1 s2]", created)
	}
}

func TestDiscardLeavesStateUntouched(t *testing.T) {
	store := NewStore()

	turn := store.Begin(context.Background(), "s1")
	turn.State.Messages = append(turn.State.Messages, llm.Message{Role: llm.RoleUser, Content: "hi"})
	turn.State.Apply(ContextPatch{BalanceDelta: decptr("-500")})
	turn.Commit()

	turn = store.Begin(context.Background(), "s1")
	turn.State.Apply(ContextPatch{BalanceDelta: decptr("-400")})
	turn.State.Messages = append(turn.State.Messages, llm.Message{Role: llm.RoleUser, Content: "again"})
	turn.Discard()

	turn = store.Begin(context.Background(), "s1")
	defer turn.Discard()
	if !turn.State.SimulatedBalance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance = %s, want 500", turn.State.SimulatedBalance)
	}
	if len(turn.State.Messages) != 1 {
		t.Fatalf("messages = %+v", turn.State.Messages)
	}
}

func TestOneTurnPerSessionAtATime(t *testing.T) {
	store := NewStore()

	first := store.Begin(context.Background(), "s1")

	acquired := make(chan struct{})
	go func() {
		second := store.Begin(context.Background(), "s1")
		close(acquired)
		second.Discard()
	}()

	select {
	case <-acquired:
		t.Fatal("second turn acquired while first in flight")
	case <-time.After(50 * time.Millisecond):
	}

	first.Commit()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second turn never acquired after commit")
	}
}

func TestConcurrentSessionsDoNotRace(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				turn := store.Begin(context.Background(), id)
				turn.State.Apply(ContextPatch{BalanceDelta: decptr("-1")})
				turn.Commit()
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		balance, ok := store.Balance(id)
		if !ok || !balance.Equal(decimal.NewFromInt(950)) {
			t.Fatalf("session %s balance = %s, want 950", id, balance)
		}
	}
}
