// Package server exposes the assistant over HTTP: a JSON API for chat and
// memory administration, a websocket for GUIs, health probes and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lewisedginton/friday_assistant/internal/assistant"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/monitoring"
	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
	"github.com/lewisedginton/friday_assistant/pkg/httpmiddleware"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

// DefaultMaxSessions bounds the number of live chat sessions.
const DefaultMaxSessions = 64

// Store is the memory store surface the API reads and administers.
type Store interface {
	GetMemories(ctx context.Context, filter memory_store.MemoryFilter) ([]memory_store.Memory, error)
	FindMemories(ctx context.Context, query string, limit int) ([]memory_store.Memory, error)
	AddMemory(ctx context.Context, memoryType memory_store.MemoryType, content string, importance int) (int64, error)
	DeleteMemory(ctx context.Context, id int64) error
	GetPersonalityTraits(ctx context.Context) (map[memory_store.Trait]float64, error)
	GetLearnedPreferences(ctx context.Context, limit int) ([]memory_store.LearnedPreference, error)
	GetCorrections(ctx context.Context, limit int) ([]memory_store.Correction, error)
	GetRecentSummaries(ctx context.Context, days int) ([]memory_store.DailySummary, error)
	GetRecentConversations(ctx context.Context, limit int) ([]memory_store.ConversationTurn, error)
	SearchConversations(ctx context.Context, query string, limit int) ([]memory_store.ConversationTurn, error)
	Stats(ctx context.Context) (memory_store.Stats, error)
	Backup(ctx context.Context, dest string) error
}

// Config holds the server's collaborators.
type Config struct {
	HTTP      pkgconfig.HTTPServerConfig
	Assistant *assistant.Assistant
	Store     Store
	// Backups, when set, enables POST /api/backup
	Backups *storage_manager.BackupArchive
	// Health, when set, is mounted at LivenessPath and ReadinessPath
	Health        *monitoring.HealthMonitor
	LivenessPath  string
	ReadinessPath string
	// Metrics feeds the HTTP counters; ServeMetrics also mounts /metrics
	Metrics      *metrics.Metrics
	ServeMetrics bool
	// MetricsPath defaults to /metrics.
	MetricsPath string

	APIToken       string
	MaxRequestSize int64
	// ChatRate and ChatBurst limit chat messages per client; zero disables
	ChatRate       float64
	ChatBurst      int
	MaxSessions    int
	Logger         logger.Logger
	Clock          func() time.Time
}

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	log      logger.Logger
	sessions *sessionRegistry
	limiter  *httpmiddleware.RateLimiter
	handler  http.Handler

	// closing ends open websockets, which Shutdown does not track
	closing   chan struct{}
	closeOnce sync.Once
}

// New builds the router. Assistant and Store are required.
func New(cfg Config) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("server: assistant is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.LivenessPath == "" {
		cfg.LivenessPath = "/health/live"
	}
	if cfg.ReadinessPath == "" {
		cfg.ReadinessPath = "/health/ready"
	}

	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger.WithFields(logger.ComponentField("http_server")),
		sessions: newSessionRegistry(cfg.Assistant.NewSession, cfg.MaxSessions, cfg.Clock),
		limiter:  httpmiddleware.NewRateLimiter(cfg.ChatRate, cfg.ChatBurst),
		closing:  make(chan struct{}),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.cfg.Logger
	mw.EnableLogging = true
	mw.Metrics = s.cfg.Metrics
	mw.EnableTimeout = false
	if s.cfg.MaxRequestSize > 0 {
		mw.MaxBodyBytes = s.cfg.MaxRequestSize
	}
	if len(s.cfg.HTTP.AllowedOrigins) > 0 {
		mw.CORS.AllowedOrigins = s.cfg.HTTP.AllowedOrigins
	}

	r := chi.NewRouter()
	httpmiddleware.ApplyToRouter(r, mw)

	if s.cfg.Health != nil {
		s.cfg.Health.Register(r, s.cfg.LivenessPath, s.cfg.ReadinessPath)
	}
	if s.cfg.ServeMetrics && s.cfg.Metrics != nil {
		r.Handle(s.cfg.MetricsPath, s.cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.BearerToken(s.cfg.APIToken))
		r.Get("/ws", s.handleWebsocket)

		r.Route("/api", func(r chi.Router) {
			if s.cfg.HTTP.WriteTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.HTTP.WriteTimeout))
			}
			r.With(httpmiddleware.RateLimit(s.limiter)).Post("/chat", s.handleChat)
			r.Delete("/chat/{sessionID}", s.handleResetSession)

			r.Get("/memories", s.handleListMemories)
			r.Post("/memories", s.handleAddMemory)
			r.Delete("/memories/{id}", s.handleDeleteMemory)

			r.Get("/personality", s.handlePersonality)
			r.Get("/preferences", s.handlePreferences)
			r.Get("/lessons", s.handleLessons)
			r.Get("/summaries", s.handleSummaries)
			r.Get("/conversations", s.handleConversations)
			r.Get("/stats", s.handleStats)
			r.Post("/backup", s.handleBackup)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.HTTP.ReadTimeout,
		IdleTimeout:       s.cfg.HTTP.IdleTimeout,
	}
	srv.RegisterOnShutdown(func() {
		s.closeOnce.Do(func() { close(s.closing) })
	})

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", logger.StringField("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	if s.cfg.Health != nil {
		s.cfg.Health.MarkShuttingDown()
	}
	timeout := s.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.log.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
