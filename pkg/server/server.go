package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/config"
	"aiemployee/rulekit/pkg/manager"
	"aiemployee/rulekit/pkg/telemetry/health"
)

// Deps are the components served by the API. Manager is required; the rest
// are optional and their routes are omitted when nil.
type Deps struct {
	Manager *manager.Manager

	// Recorder receives one audit record per evaluation.
	Recorder *audit.Recorder

	// AuditStorage backs GET /v1/audit.
	AuditStorage audit.Storage

	// Health serves /health and /ready.
	Health *health.Checker

	// Metrics is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string
}

// Server is the rulekit HTTP API.
type Server struct {
	config     config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server

	mu           sync.Mutex
	running      bool
	shutdownOnce sync.Once
}

// New creates a server. Routes are built immediately so Handler can be used
// without starting a listener.
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Manager == nil {
		return nil, errors.New("server: manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	if s.deps.Health != nil {
		r.Get("/health", s.deps.Health.LivenessHandler())
		r.Get("/ready", s.deps.Health.ReadinessHandler())
	}
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.deps.MetricsPath, s.deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ruleID}", s.handleGetRule)
			r.Put("/{ruleID}", s.handleUpdateRule)
			r.Delete("/{ruleID}", s.handleDeleteRule)
		})

		if s.deps.AuditStorage != nil {
			r.Get("/audit", s.handleQueryAudit)
		}
	})

	return r
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is done or
// the listener fails. It shuts down gracefully before returning.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start with a caller-supplied listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv == nil {
			return
		}

		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
