// Package metrics provides Prometheus metrics for the conversation
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConversationMetrics collects turn, tool and betting metrics on a
// private registry.
type ConversationMetrics struct {
	registry *prometheus.Registry

	TurnsTotal    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	DecisionCalls *prometheus.CounterVec
	RoundTrips    prometheus.Histogram

	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	SessionsStarted prometheus.Counter
	BetsPlaced      prometheus.Counter
	BetVolume       prometheus.Counter

	CatalogTeams       prometheus.Gauge
	CatalogTournaments prometheus.Gauge
	FixturesLoaded     prometheus.Gauge
}

// NewConversationMetrics creates and registers the metric set.
func NewConversationMetrics() *ConversationMetrics {
	registry := prometheus.NewRegistry()

	m := &ConversationMetrics{
		registry: registry,

		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbet_turns_total",
				Help: "Conversation turns by final status",
			},
			[]string{"status"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatbet_turn_duration_seconds",
				Help:    "Wall time of one conversation turn",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		DecisionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbet_decision_calls_total",
				Help: "Decision-service calls by outcome",
			},
			[]string{"outcome"},
		),
		RoundTrips: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatbet_turn_round_trips",
				Help:    "Decision/tool round-trips per turn",
				Buckets: prometheus.LinearBuckets(0, 1, 10),
			},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbet_tool_calls_total",
				Help: "Tool dispatches by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatbet_tool_duration_seconds",
				Help:    "Tool execution time",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"tool"},
		),
		SessionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chatbet_sessions_started_total",
				Help: "Sessions created",
			},
		),
		BetsPlaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chatbet_bets_placed_total",
				Help: "Simulated bets placed",
			},
		),
		BetVolume: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chatbet_bet_volume_usd_total",
				Help: "Total simulated stake volume",
			},
		),
		CatalogTeams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatbet_catalog_teams",
				Help: "Team names in the catalog",
			},
		),
		CatalogTournaments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatbet_catalog_tournaments",
				Help: "Tournament names in the catalog",
			},
		),
		FixturesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatbet_fixtures_loaded",
				Help: "Fixtures in the current snapshot",
			},
		),
	}

	registry.MustRegister(
		m.TurnsTotal, m.TurnDuration, m.DecisionCalls, m.RoundTrips,
		m.ToolCalls, m.ToolDuration,
		m.SessionsStarted, m.BetsPlaced, m.BetVolume,
		m.CatalogTeams, m.CatalogTournaments, m.FixturesLoaded,
	)
	return m
}

// Registry exposes the private registry, for tests and custom
// handlers.
func (m *ConversationMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry over HTTP.
func (m *ConversationMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn records one finished turn.
func (m *ConversationMetrics) RecordTurn(status string, seconds float64, roundTrips int) {
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnDuration.Observe(seconds)
	m.RoundTrips.Observe(float64(roundTrips))
}

// RecordDecision records one decision-service call outcome.
func (m *ConversationMetrics) RecordDecision(outcome string) {
	m.DecisionCalls.WithLabelValues(outcome).Inc()
}

// RecordTool records one tool dispatch.
func (m *ConversationMetrics) RecordTool(tool, status string, seconds float64) {
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordSessionStarted counts one newly created session.
func (m *ConversationMetrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordBet records one placed simulated bet.
func (m *ConversationMetrics) RecordBet(stakeUSD float64) {
	m.BetsPlaced.Inc()
	m.BetVolume.Add(stakeUSD)
}

// UpdateSnapshot reflects the current feed/catalog sizes.
func (m *ConversationMetrics) UpdateSnapshot(fixtures, teams, tournaments int) {
	m.FixturesLoaded.Set(float64(fixtures))
	m.CatalogTeams.Set(float64(teams))
	m.CatalogTournaments.Set(float64(tournaments))
}
