// Package agent runs the conversation loop: the model decides, tools
// execute, and the session state advances one committed turn at a time.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/chatbet-agent/pkg/llm"
	"github.com/phenomenon0/chatbet-agent/pkg/metrics"
	"github.com/phenomenon0/chatbet-agent/pkg/session"
	"github.com/phenomenon0/chatbet-agent/pkg/streaming"
)

// DefaultMaxRoundTrips bounds model round trips within a single turn.
const DefaultMaxRoundTrips = 8

const degradedResponse = "I'm sorry, I was unable to complete your request. Please try rephrasing it or asking for something simpler."

// Engine drives a turn: it asks the model for a decision, dispatches at
// most one tool per round trip, and feeds the tool output back until
// the model produces a final message.
type Engine struct {
	decider  llm.Decider
	registry *Registry
	sessions *session.Store

	maxRoundTrips int
	log           *logrus.Entry
	metrics       *metrics.ConversationMetrics
	hub           *streaming.Hub
	nowFn         func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMaxRoundTrips overrides the per-turn round-trip cap.
func WithMaxRoundTrips(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxRoundTrips = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *logrus.Entry) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithMetrics wires conversation metrics collection.
func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithHub wires event streaming for connected observers.
func WithHub(h *streaming.Hub) EngineOption {
	return func(e *Engine) { e.hub = h }
}

func withNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.nowFn = now }
}

// NewEngine builds a conversation engine.
func NewEngine(decider llm.Decider, registry *Registry, sessions *session.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		decider:       decider,
		registry:      registry,
		sessions:      sessions,
		maxRoundTrips: DefaultMaxRoundTrips,
		log:           logrus.NewEntry(logrus.StandardLogger()),
		nowFn:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TurnResult is the committed outcome of one user turn.
type TurnResult struct {
	Response   string
	Balance    decimal.Decimal
	RoundTrips int
}

// Respond processes one user message for the given session. Turns on
// the same session run one at a time; a second caller blocks until the
// first turn commits or is discarded. On a model failure the turn is
// discarded and the session is left exactly as it was.
func (e *Engine) Respond(ctx context.Context, sessionID, userInput string) (*TurnResult, error) {
	started := e.nowFn()
	turn := e.sessions.Begin(ctx, sessionID)

	turn.State.Messages = append(turn.State.Messages, llm.Message{
		Role:    llm.RoleUser,
		Content: userInput,
	})

	for trip := 0; trip < e.maxRoundTrips; trip++ {
		decision, err := e.decider.Decide(ctx, &llm.Request{
			System:   SystemPrompt(turn.State),
			Messages: turn.State.Messages,
			Tools:    e.registry.Schemas(),
		})
		if err != nil {
			turn.Discard()
			e.observeTurn(sessionID, "error", started, trip)
			e.observeDecision("error")
			return nil, fmt.Errorf("model decision failed: %w", err)
		}

		if len(decision.ToolCalls) == 0 {
			e.observeDecision("final")
			turn.State.Messages = append(turn.State.Messages, llm.Message{
				Role:    llm.RoleAssistant,
				Content: decision.Content,
			})
			result := &TurnResult{
				Response:   decision.Content,
				Balance:    turn.State.SimulatedBalance,
				RoundTrips: trip,
			}
			turn.Commit()
			e.observeTurn(sessionID, "ok", started, trip)
			return result, nil
		}

		// Only the first requested tool runs; any extra calls in the
		// same decision are ignored.
		call := decision.ToolCalls[0]
		e.observeDecision("tool")
		turn.State.Messages = append(turn.State.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   decision.Content,
			ToolCalls: []llm.ToolCall{call},
		})

		display := e.runTool(ctx, sessionID, turn.State, call)
		turn.State.Messages = append(turn.State.Messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    display,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}

	// Round-trip cap reached; commit the conversation so far with a
	// degraded final message instead of looping further.
	e.log.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"round_trips": e.maxRoundTrips,
	}).Warn("turn hit round-trip cap")

	turn.State.Messages = append(turn.State.Messages, llm.Message{
		Role:    llm.RoleAssistant,
		Content: degradedResponse,
	})
	result := &TurnResult{
		Response:   degradedResponse,
		Balance:    turn.State.SimulatedBalance,
		RoundTrips: e.maxRoundTrips,
	}
	turn.Commit()
	e.observeTurn(sessionID, "degraded", started, e.maxRoundTrips)
	return result, nil
}

// runTool dispatches one tool call and returns the text fed back to the
// model. Tool failures become feedback, not turn failures.
func (e *Engine) runTool(ctx context.Context, sessionID string, state *session.State, call llm.ToolCall) string {
	toolStart := e.nowFn()
	res, err := e.registry.Dispatch(ctx, state, call.Name, call.Arguments)
	elapsed := e.nowFn().Sub(toolStart).Seconds()

	if err != nil {
		e.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"tool":       call.Name,
		}).WithError(err).Debug("tool call failed")
		e.observeTool(sessionID, call.Name, "error", elapsed)
		return fmt.Sprintf("Error: %s", err)
	}

	if !res.Patch.Empty() {
		state.Apply(res.Patch)
	}
	if res.Patch.NewBet != nil {
		if e.metrics != nil {
			stake, _ := res.Patch.NewBet.Amount.Float64()
			e.metrics.RecordBet(stake)
		}
		if e.hub != nil {
			e.hub.BroadcastBet(sessionID, res.Patch.NewBet)
		}
	}
	e.observeTool(sessionID, call.Name, "ok", elapsed)
	return res.Display
}

func (e *Engine) observeTurn(sessionID, status string, started time.Time, roundTrips int) {
	if e.metrics != nil {
		e.metrics.RecordTurn(status, e.nowFn().Sub(started).Seconds(), roundTrips)
	}
	if e.hub != nil {
		e.hub.BroadcastTurn(sessionID, status, roundTrips)
	}
}

func (e *Engine) observeDecision(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordDecision(outcome)
	}
}

func (e *Engine) observeTool(sessionID, tool, status string, seconds float64) {
	if e.metrics != nil {
		e.metrics.RecordTool(tool, status, seconds)
	}
	if e.hub != nil {
		e.hub.BroadcastToolCall(sessionID, tool, status)
	}
}
