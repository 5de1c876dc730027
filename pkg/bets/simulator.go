// Package bets validates and applies simulated wagers against a
// session's virtual balance.
package bets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phenomenon0/chatbet-agent/pkg/odds"
)

// ErrInvalidAmount rejects non-positive stakes.
var ErrInvalidAmount = errors.New("bet amount must be positive")

// InsufficientBalanceError rejects a stake exceeding the session
// balance. The message carries the current balance.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. You have $%s but tried to bet $%s.",
		e.Balance.StringFixed(2), e.Amount.StringFixed(2))
}

// OutcomeNotOfferedError rejects a bet on an outcome the fixture's
// markets do not price.
type OutcomeNotOfferedError struct {
	Match   string
	Outcome string
}

func (e *OutcomeNotOfferedError) Error() string {
	return fmt.Sprintf("no odds offered on %q for %s", e.Outcome, e.Match)
}

// LedgerEntry records one simulated bet within a session.
type LedgerEntry struct {
	ID                string          `json:"id"`
	Match             string          `json:"match"`
	Outcome           string          `json:"outcome"`
	Amount            decimal.Decimal `json:"amount"`
	Odds              decimal.Decimal `json:"odds"`
	PotentialWinnings decimal.Decimal `json:"potential_winnings"`
	PlacedAt          time.Time       `json:"placed_at"`
}

// Placement is the result of a successful simulated bet. BalanceDelta
// is negative: the stake is debited immediately and winnings are never
// credited, since outcomes are not settled in this simulation.
type Placement struct {
	DisplayText  string
	BalanceDelta decimal.Decimal
	Entry        LedgerEntry
}

// Simulator prices and records simulated bets. It touches no upstream
// state; only the caller's session balance changes.
type Simulator struct {
	resolver *odds.Resolver
	nowFn    func() time.Time
	newID    func() string
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithNow injects the clock stamped onto ledger entries.
func WithNow(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.nowFn = now }
}

// WithIDFunc injects the ledger id generator.
func WithIDFunc(fn func() string) SimulatorOption {
	return func(s *Simulator) { s.newID = fn }
}

// NewSimulator wires a simulator over the odds resolver.
func NewSimulator(resolver *odds.Resolver, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		resolver: resolver,
		nowFn:    time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBet validates a stake on the named outcome of the fixture
// between the two teams. balance is the session's current simulated
// balance; the returned delta debits exactly the stake. Precondition
// failures leave the session untouched.
func (s *Simulator) PlaceBet(ctx context.Context, teamOne, teamTwo, outcome string, amount, balance decimal.Decimal) (Placement, error) {
	if !amount.IsPositive() {
		return Placement{}, ErrInvalidAmount
	}

	snap, err := s.resolver.ForMatch(ctx, teamOne, teamTwo)
	if err != nil {
		return Placement{}, err
	}
	price, ok := snap.OutcomeOdds(outcome)
	if !ok {
		return Placement{}, &OutcomeNotOfferedError{Match: snap.Fixture.Label(), Outcome: outcome}
	}

	if amount.GreaterThan(balance) {
		return Placement{}, &InsufficientBalanceError{Balance: balance, Amount: amount}
	}

	winnings := amount.Mul(*price)
	entry := LedgerEntry{
		ID:                s.newID(),
		Match:             snap.Fixture.Label(),
		Outcome:           outcome,
		Amount:            amount,
		Odds:              *price,
		PotentialWinnings: winnings,
		PlacedAt:          s.nowFn().UTC(),
	}
	text := fmt.Sprintf("Bet placed successfully! You bet $%s on %s. Potential winnings: $%s. Your new balance is approximately $%s.",
		amount.StringFixed(2), outcome, winnings.StringFixed(2), balance.Sub(amount).StringFixed(2))

	return Placement{
		DisplayText:  text,
		BalanceDelta: amount.Neg(),
		Entry:        entry,
	}, nil
}

// Winnings computes the potential payout for a stake at the given odds.
func Winnings(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price)
}
