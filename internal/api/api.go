// Package api provides HTTP handlers and the main API server logic for
// CookFlow.
//
// It exposes RESTful endpoints for creating dialogue sessions, processing
// turns, and inspecting session state. The API wires together the store,
// retrieval, and flow modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CookFlow/internal/constraint"
	"github.com/BTreeMap/CookFlow/internal/flow"
	"github.com/BTreeMap/CookFlow/internal/genai"
	"github.com/BTreeMap/CookFlow/internal/retrieval"
	"github.com/BTreeMap/CookFlow/internal/scheduler"
	"github.com/BTreeMap/CookFlow/internal/store"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultTurnTimeout caps one turn end to end, including model calls.
	DefaultTurnTimeout = 60 * time.Second
	// MemoryIndexDSN selects the in-memory retrieval index.
	MemoryIndexDSN = "memory"
	// healthCheckTimeout caps the store probe in the health endpoint.
	healthCheckTimeout = 5 * time.Second
)

// Server carries the handler dependencies for the HTTP API.
type Server struct {
	st            store.Store
	orch          *flow.Orchestrator
	addr          string
	indexDSN      string
	dietTablePath string
	sessionTTL    time.Duration
	sweepSchedule string
	turnTimeout   time.Duration
	gateOpts      []retrieval.GateOption
	flowOpts      []flow.OrchestratorOption
}

// Option configures the API server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithIndexDSN sets a SQLite path for the retrieval index. Without it the
// index lives in memory.
func WithIndexDSN(dsn string) Option {
	return func(s *Server) { s.indexDSN = dsn }
}

// WithSessionTTL sets the idle lifetime after which the sweep removes a
// session.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithSweepSchedule sets the cron expression for the session expiry sweep.
func WithSweepSchedule(expr string) Option {
	return func(s *Server) { s.sweepSchedule = expr }
}

// WithTurnTimeout caps how long one turn may take end to end.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.turnTimeout = d
		}
	}
}

// WithDietTablePath points at a JSON diet table that replaces the embedded
// default taxonomy.
func WithDietTablePath(path string) Option {
	return func(s *Server) { s.dietTablePath = path }
}

// WithGateOptions forwards tuning options to the retrieval gate.
func WithGateOptions(opts ...retrieval.GateOption) Option {
	return func(s *Server) { s.gateOpts = append(s.gateOpts, opts...) }
}

// WithFlowOptions forwards tuning options to the orchestrator.
func WithFlowOptions(opts ...flow.OrchestratorOption) Option {
	return func(s *Server) { s.flowOpts = append(s.flowOpts, opts...) }
}

// NewServer builds a server around an already wired store and orchestrator.
func NewServer(st store.Store, orch *flow.Orchestrator, opts ...Option) *Server {
	s := &Server{
		st:          st,
		orch:        orch,
		addr:        DefaultAddr,
		sessionTTL:  store.DefaultSessionTTL,
		turnTimeout: DefaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routing table for the API endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/sessions/", s.sessionHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run wires the configured modules together and serves the API until the
// listener fails. A missing language model key is not fatal: the service
// degrades to its keyword rules.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var client genai.ClientInterface
	if c, clientErr := genai.NewClient(genaiOpts...); clientErr != nil {
		slog.Warn("api.Run: language model unavailable, using keyword rules only", "error", clientErr)
	} else {
		client = c
	}

	srv := NewServer(st, nil, apiOpts...)

	index, err := srv.buildIndex(context.Background())
	if err != nil {
		return fmt.Errorf("failed to initialize retrieval index: %w", err)
	}
	defer index.Close()

	srv.orch = flow.NewOrchestrator(st, client, retrieval.NewGate(index, srv.gateOpts...), srv.loadDietTable(), srv.flowOpts...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.ScheduleSessionSweep(st, srv.sessionTTL, srv.sweepSchedule); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	slog.Info("api.Run: CookFlow API serving", "addr", srv.addr)
	return http.ListenAndServe(srv.addr, srv.Handler())
}

// buildStore selects a store backend from the configured DSN. No DSN means
// in-memory.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var so store.Opts
	for _, opt := range storeOpts {
		opt(&so)
	}
	if so.DSN == "" {
		slog.Info("api.buildStore: no database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	switch store.DetectDSNType(so.DSN) {
	case "postgres":
		slog.Info("api.buildStore: using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	case "redis":
		slog.Info("api.buildStore: using Redis store")
		return store.NewRedisStore(storeOpts...)
	default:
		slog.Info("api.buildStore: using SQLite store", "path", so.DSN)
		return store.NewSQLiteStore(storeOpts...)
	}
}

// loadDietTable reads the configured diet table override. A missing or
// malformed file is not fatal: the embedded default stays in effect.
func (s *Server) loadDietTable() *constraint.Table {
	if s.dietTablePath == "" {
		return nil
	}
	table, err := constraint.LoadTableFile(s.dietTablePath)
	if err != nil {
		slog.Warn("api.loadDietTable: failed to load diet table, using embedded default", "path", s.dietTablePath, "error", err)
		return nil
	}
	slog.Info("api.loadDietTable: loaded diet table override", "path", s.dietTablePath)
	return table
}

// buildIndex opens the retrieval index and seeds it with the built-in corpus.
// Seeding is idempotent, so restarts reuse the existing rows.
func (s *Server) buildIndex(ctx context.Context) (retrieval.Index, error) {
	if s.indexDSN == "" || s.indexDSN == MemoryIndexDSN {
		slog.Info("api.buildIndex: using in-memory retrieval index")
		return retrieval.NewMemoryIndex(retrieval.DefaultCorpus()), nil
	}
	index, err := retrieval.NewSQLiteIndex(s.indexDSN)
	if err != nil {
		return nil, err
	}
	if err := index.Seed(ctx, retrieval.DefaultCorpus()); err != nil {
		index.Close()
		return nil, err
	}
	slog.Info("api.buildIndex: using SQLite retrieval index", "path", s.indexDSN)
	return index, nil
}
