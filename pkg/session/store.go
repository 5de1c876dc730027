package session

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultStartingBalance seeds a new session when no balance source is
// configured or the lookup fails.
var DefaultStartingBalance = decimal.NewFromInt(1000)

// BalanceSource looks up the real balance used once to seed a new
// session's simulated balance.
type BalanceSource interface {
	CurrentBalance(ctx context.Context) (decimal.Decimal, error)
}

// Store keeps session state in memory, one in-flight turn per session
// id.
type Store struct {
	balances BalanceSource
	log      *logrus.Entry
	nowFn    func() time.Time
	onCreate func(sessionID string)

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	state *State
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithBalanceSource sets the seed-balance lookup for new sessions.
func WithBalanceSource(src BalanceSource) StoreOption {
	return func(s *Store) { s.balances = src }
}

// WithLogger sets the store's logger.
func WithLogger(log *logrus.Entry) StoreOption {
	return func(s *Store) { s.log = log }
}

// WithNow injects the clock.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.nowFn = now }
}

// OnCreate registers a callback fired once per newly created session.
// Set before the store starts serving turns.
func (s *Store) OnCreate(fn func(sessionID string)) {
	s.onCreate = fn
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		nowFn:    time.Now,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Turn is exclusive access to one session for the duration of a
// conversation turn. State is a private copy; nothing is visible to
// other turns until Commit. Exactly one of Commit or Discard must be
// called.
type Turn struct {
	State *State

	entry *entry
	store *Store
	done  bool
}

// Begin acquires the session's turn lock, creating the session lazily
// with a seeded balance on first use. It blocks while another turn on
// the same session is in flight; ctx only bounds the seed lookup.
func (s *Store) Begin(ctx context.Context, sessionID string) *Turn {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	if e.state == nil {
		e.state = &State{
			ID:               sessionID,
			SimulatedBalance: s.seedBalance(ctx),
			CreatedAt:        s.nowFn().UTC(),
		}
		if s.onCreate != nil {
			s.onCreate(sessionID)
		}
	}
	return &Turn{State: e.state.Clone(), entry: e, store: s}
}

// Commit publishes the turn's state and releases the session.
func (t *Turn) Commit() {
	if t.done {
		return
	}
	t.done = true
	t.State.UpdatedAt = t.store.nowFn().UTC()
	t.entry.state = t.State
	t.entry.mu.Unlock()
}

// Discard releases the session without publishing, leaving the state
// exactly as it was before the turn began.
func (t *Turn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.entry.mu.Unlock()
}

// Balance returns the committed balance for a session, creating
// nothing. ok is false for unknown sessions.
func (s *Store) Balance(sessionID string) (decimal.Decimal, bool) {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return decimal.Decimal{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return decimal.Decimal{}, false
	}
	return e.state.SimulatedBalance, true
}

// Len returns the number of sessions ever begun.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) seedBalance(ctx context.Context) decimal.Decimal {
	if s.balances == nil {
		return DefaultStartingBalance
	}
	balance, err := s.balances.CurrentBalance(ctx)
	if err != nil {
		s.log.WithError(err).Warn("balance seed lookup failed, using default")
		return DefaultStartingBalance
	}
	return balance
}
