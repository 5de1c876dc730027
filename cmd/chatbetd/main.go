// chatbetd is the conversational sports betting assistant daemon.
// It answers chat turns over HTTP, backed by an upstream sportsbook
// API and an LLM decision service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/chatbet-agent/pkg/agent"
	"github.com/phenomenon0/chatbet-agent/pkg/bets"
	"github.com/phenomenon0/chatbet-agent/pkg/catalog"
	"github.com/phenomenon0/chatbet-agent/pkg/feed"
	"github.com/phenomenon0/chatbet-agent/pkg/llm"
	"github.com/phenomenon0/chatbet-agent/pkg/metrics"
	"github.com/phenomenon0/chatbet-agent/pkg/odds"
	"github.com/phenomenon0/chatbet-agent/pkg/schedule"
	"github.com/phenomenon0/chatbet-agent/pkg/session"
	"github.com/phenomenon0/chatbet-agent/pkg/sportsbook"
	"github.com/phenomenon0/chatbet-agent/pkg/streaming"
)

var (
	// Flags
	httpAddr   = flag.String("http", ":8000", "HTTP server address")
	apiBase    = flag.String("api", "", "Sportsbook API base URL (or SPORTSBOOK_API_URL env)")
	provider   = flag.String("provider", "openai", "LLM provider: openai, anthropic, openrouter, deepseek, ollama")
	model      = flag.String("model", "", "LLM model override")
	sportID    = flag.String("sport", feed.DefaultSportID, "Upstream sport id to index")
	roundTrips = flag.Int("round-trips", agent.DefaultMaxRoundTrips, "Model round-trip cap per turn")
	refresh    = flag.Duration("refresh", 15*time.Minute, "Fixture snapshot refresh interval (0 disables)")
	verbose    = flag.Bool("verbose", false, "Verbose logging")
)

func main() {
	flag.Parse()
	godotenv.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "chatbetd")
	log.Info("Starting ChatBet assistant")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	svc, err := newService(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize service")
	}

	go svc.hub.Run(ctx)
	go svc.populate(ctx)

	server := &http.Server{
		Addr:         *httpAddr,
		Handler:      svc.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	go func() {
		log.WithField("addr", *httpAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	<-sigCh
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	cancel()

	prompt, completion, usd := svc.llmClient.Cost().Totals()
	log.WithFields(logrus.Fields{
		"sessions":          svc.sessions.Len(),
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"estimated_usd":     usd,
	}).Info("Goodbye!")
}

type chatService struct {
	log       *logrus.Entry
	apiClient *sportsbook.Client
	feedStore *feed.Store
	catalog   *catalog.Catalog
	sessions  *session.Store
	llmClient *llm.Client
	engine    *agent.Engine
	metrics   *metrics.ConversationMetrics
	hub       *streaming.Hub
}

func newService(log *logrus.Entry) (*chatService, error) {
	svc := &chatService{
		log:     log,
		metrics: metrics.NewConversationMetrics(),
		hub:     streaming.NewHub(logrus.WithField("component", "streaming")),
	}

	base := *apiBase
	if base == "" {
		base = os.Getenv("SPORTSBOOK_API_URL")
	}
	var clientOpts []sportsbook.ClientOption
	if userID := os.Getenv("SPORTSBOOK_USER_ID"); userID != "" {
		clientOpts = append(clientOpts, sportsbook.WithCredentials(userID, os.Getenv("SPORTSBOOK_USER_KEY")))
	}
	svc.apiClient = sportsbook.NewClient(base, clientOpts...)

	svc.feedStore = feed.NewStore(svc.apiClient, feed.WithSportID(*sportID))
	svc.catalog = catalog.New(svc.feedStore)
	index := schedule.NewIndex(svc.feedStore)
	resolver := odds.NewResolver(svc.catalog, svc.feedStore, oddsSource{svc.apiClient})
	analyzer := odds.NewAnalyzer(index, resolver, logrus.WithField("component", "analysis"))
	simulator := bets.NewSimulator(resolver)

	svc.sessions = session.NewStore(
		session.WithBalanceSource(balanceSource{svc.apiClient}),
		session.WithLogger(logrus.WithField("component", "session")),
	)
	svc.sessions.OnCreate(func(string) { svc.metrics.RecordSessionStarted() })

	svc.llmClient = llm.NewClient(llmConfig())

	toolset := agent.NewToolset(agent.Deps{
		Catalog:   svc.catalog,
		Schedule:  index,
		Resolver:  resolver,
		Analyzer:  analyzer,
		Simulator: simulator,
		Log:       logrus.WithField("component", "tools"),
	})
	svc.engine = agent.NewEngine(svc.llmClient, toolset, svc.sessions,
		agent.WithMaxRoundTrips(*roundTrips),
		agent.WithLogger(logrus.WithField("component", "engine")),
		agent.WithMetrics(svc.metrics),
		agent.WithHub(svc.hub),
	)

	return svc, nil
}

func llmConfig() llm.Config {
	var cfg llm.Config
	switch *provider {
	case "anthropic":
		cfg = llm.DefaultAnthropicConfig
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openrouter":
		cfg = llm.DefaultOpenAIConfig
		cfg.Provider = "openrouter"
		cfg.BaseURL = "https://openrouter.ai/api/v1"
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	case "deepseek":
		cfg = llm.DefaultOpenAIConfig
		cfg.Provider = "deepseek"
		cfg.BaseURL = "https://api.deepseek.com/v1"
		cfg.Model = "deepseek-chat"
		cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	case "ollama":
		cfg = llm.DefaultOpenAIConfig
		cfg.Provider = "ollama"
		cfg.BaseURL = "http://localhost:11434/v1"
		cfg.Model = "llama3.1"
	default:
		cfg = llm.DefaultOpenAIConfig
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if *model != "" {
		cfg.Model = *model
	}
	return cfg
}

// populate loads the fixture snapshot in the background so the server
// can bind immediately, then refreshes it on an interval. A population
// that exhausts retries still marks the cache ready: the assistant
// serves turns in a degraded state and the tools report unavailable
// data. Refreshes swap the snapshot only on success, keeping the
// last-known-good one otherwise.
func (s *chatService) populate(ctx context.Context) {
	if err := s.apiClient.Authenticate(ctx); err != nil {
		s.log.WithError(err).Warn("Sportsbook authentication failed")
	}
	if err := s.catalog.Populate(ctx); err != nil {
		s.log.WithError(err).Error("Fixture snapshot load failed, serving degraded")
	}
	s.announceSnapshot()

	if *refresh <= 0 {
		return
	}
	ticker := time.NewTicker(*refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.apiClient.Authenticate(ctx); err != nil {
				s.log.WithError(err).Warn("Sportsbook authentication failed")
			}
			if err := s.catalog.Refresh(ctx); err != nil {
				s.log.WithError(err).Warn("Fixture snapshot refresh failed, keeping previous snapshot")
				continue
			}
			s.announceSnapshot()
		}
	}
}

func (s *chatService) announceSnapshot() {
	s.metrics.UpdateSnapshot(len(s.feedStore.Fixtures()), len(s.catalog.Teams()), len(s.catalog.Tournaments()))
	s.hub.BroadcastStatus(map[string]any{
		"cache_ready": s.feedStore.Populated(),
		"fixtures":    len(s.feedStore.Fixtures()),
	})
	s.log.WithFields(logrus.Fields{
		"fixtures":    len(s.feedStore.Fixtures()),
		"teams":       len(s.catalog.Teams()),
		"tournaments": len(s.catalog.Tournaments()),
	}).Info("Fixture snapshot loaded")
}

func (s *chatService) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"cache_ready":     s.feedStore.Populated(),
			"catalog_ready":   s.catalog.Ready(),
			"fixtures":        len(s.feedStore.Fixtures()),
			"active_sessions": s.sessions.Len(),
			"ws_clients":      s.hub.ClientCount(),
		})
	})
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/ws", s.hub.ServeWS)
	return mux
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
}

type chatResponse struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	Balance   decimal.Decimal `json:"balance"`
}

func (s *chatService) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use POST"})
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" || req.UserInput == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id and user_input are required"})
		return
	}
	// Only the initial load gates traffic. A degraded (empty) snapshot
	// still serves; the tools answer that data is unavailable.
	if !s.feedStore.Populated() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "the assistant is still loading fixture data, try again shortly",
		})
		return
	}

	result, err := s.engine.Respond(r.Context(), req.SessionID, req.UserInput)
	if err != nil {
		s.log.WithError(err).WithField("session_id", req.SessionID).Error("Turn failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "the assistant is unavailable right now"})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.Response,
		SessionID: req.SessionID,
		Balance:   result.Balance,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// oddsSource adapts the sportsbook client to the resolver's interface.
type oddsSource struct {
	client *sportsbook.Client
}

func (s oddsSource) GetOdds(ctx context.Context, fixtureID, tournamentID, sportID string) (sportsbook.RawOdds, error) {
	raw, err := s.client.GetOdds(ctx, fixtureID, tournamentID, sportID)
	if err != nil {
		return sportsbook.RawOdds{}, err
	}
	return *raw, nil
}

// balanceSource seeds new sessions from the upstream wallet lookup.
type balanceSource struct {
	client *sportsbook.Client
}

func (s balanceSource) CurrentBalance(ctx context.Context) (decimal.Decimal, error) {
	resp, err := s.client.GetUserBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return resp.Money, nil
}
