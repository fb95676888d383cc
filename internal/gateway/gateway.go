// ABOUTME: Gateway orchestrator that wires registry, search, relay and auth into one HTTP server
// ABOUTME: Manages the store, dedupe cache, health endpoints and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"github.com/2389/agentlink-gateway/internal/auth"
	"github.com/2389/agentlink-gateway/internal/config"
	"github.com/2389/agentlink-gateway/internal/dedupe"
	"github.com/2389/agentlink-gateway/internal/liveness"
	"github.com/2389/agentlink-gateway/internal/metrics"
	"github.com/2389/agentlink-gateway/internal/mockagent"
	"github.com/2389/agentlink-gateway/internal/probe"
	"github.com/2389/agentlink-gateway/internal/profile"
	"github.com/2389/agentlink-gateway/internal/registry"
	"github.com/2389/agentlink-gateway/internal/relay"
	"github.com/2389/agentlink-gateway/internal/search"
	"github.com/2389/agentlink-gateway/internal/store"
)

// readyTimeout bounds the store ping behind /health/ready.
const readyTimeout = 2 * time.Second

// Gateway owns the agentlink HTTP server and everything behind it.
type Gateway struct {
	config   *config.Config
	store    store.Store
	registry *registry.Service
	search   *search.Service
	relay    *relay.Engine
	profiles *profile.Renderer
	verifier *auth.JWTVerifier
	metrics  *metrics.Metrics
	validate *validator.Validate

	// dedupe suppresses repeated chat submissions carrying the same client message ID
	dedupe *dedupe.Cache

	httpServer *http.Server
	logger     *slog.Logger
}

// initStore opens the SQLite store named by the config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway backed by the configured SQLite database.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	gw, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway on an existing store. The Gateway takes
// ownership and closes the store on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	m := metrics.New()
	prober := probe.New(nil)

	aggregator := liveness.NewAggregator(prober, s, liveness.Config{
		Timeout:        cfg.Probes.SearchTimeout,
		MaxConcurrency: cfg.Probes.MaxConcurrency,
	}, m, logger)

	gw := &Gateway{
		config: cfg,
		store:  s,
		registry: registry.NewService(s, prober, verifier, registry.Config{
			RegistrationTimeout: cfg.Probes.RegistrationTimeout,
			HealthTimeout:       cfg.Probes.HealthTimeout,
			TokenTTL:            cfg.Auth.TokenTTL,
		}, m, logger),
		search:   search.NewService(s, aggregator, logger),
		relay:    relay.New(s, prober, cfg.Probes.ChatTimeout, m, logger),
		profiles: profile.NewRenderer(),
		verifier: verifier,
		metrics:  m,
		validate: newValidator(),
		dedupe: dedupe.New(dedupe.Config{
			TTL:        cfg.Dedupe.TTL,
			MaxEntries: cfg.Dedupe.MaxEntries,
		}),
		logger: logger.With("component", "gateway"),
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// routes builds the HTTP handler tree.
func (g *Gateway) routes(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	// Public API
	mux.HandleFunc("POST /api/register-agent", g.handleRegisterAgent)
	mux.HandleFunc("POST /api/health", g.handleHealthCheck)
	mux.HandleFunc("POST /api/search-agents", g.handleSearchAgents)
	mux.HandleFunc("POST /api/chat", g.handleChat)

	optionalAuth := auth.OptionalAuthMiddleware(g.store, g.verifier)
	mux.Handle("GET /api/agents/{id}", optionalAuth(http.HandlerFunc(g.handleAgentProfile)))

	// Talent endpoints - login token required
	requireAuth := auth.HTTPAuthMiddleware(g.store, g.verifier, logger)
	mux.Handle("POST /api/chat/direct", requireAuth(http.HandlerFunc(g.handleDirectMessage)))
	mux.Handle("GET /api/chat-history", requireAuth(http.HandlerFunc(g.handleChatHistory)))

	if g.config.MockAgent.Enabled {
		mux.Handle("POST /api/mock-ep/chat", mockagent.Handler(mockagent.Options{
			MinDelay: 200 * time.Millisecond,
			MaxDelay: 800 * time.Millisecond,
			Logger:   logger,
		}))
		g.logger.Info("mock agent endpoint enabled at /api/mock-ep/chat")
	}

	if g.config.Metrics.Enabled {
		mux.Handle("GET "+g.config.Metrics.Path, g.metrics.Handler())
		g.logger.Info("metrics enabled", "path", g.config.Metrics.Path)
	}

	if len(g.config.CORS.AllowedOrigins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: g.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(mux)
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on an existing listener until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, waiting for in-flight relays, then
// releases the dedupe sweeper and the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	g.dedupe.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
