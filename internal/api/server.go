package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crieger/scopegw/internal/auth"
	"github.com/crieger/scopegw/internal/mcp"
	"github.com/crieger/scopegw/internal/scan"
)

// JobManager defines the scan job operations the API depends on.
type JobManager interface {
	CreateJob(tool, target string, args map[string]any, webhookURL string) string
	StartJob(jobID string, handler scan.Handler) error
	CancelJob(jobID string) bool
	GetJobStatus(jobID string) (scan.Summary, error)
	GetJobResults(jobID string) (scan.Detail, error)
	ListJobs(status scan.Status, tool string, limit int) []scan.Summary
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the legacy single bearer token (admin/full access).
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig

	ServerName string
	Version    string
}

// Server is the HTTP gateway: JSON-RPC messages, the REST scan surface and
// the SSE event stream.
type Server struct {
	config     Config
	manager    JobManager
	registry   *mcp.Registry
	dispatcher *mcp.Dispatcher
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
	events     *EventHub
}

// New creates a server around an existing event hub so job lifecycle events
// published by the manager reach SSE clients.
func New(config Config, manager JobManager, registry *mcp.Registry, events *EventHub, logger *slog.Logger) *Server {
	if config.ServerName == "" {
		config.ServerName = "scopegw"
	}
	if events == nil {
		events = NewEventHub(256)
	}
	return &Server{
		config:     config,
		manager:    manager,
		registry:   registry,
		dispatcher: mcp.NewDispatcher(registry, config.ServerName, config.Version),
		logger:     logger,
		startedAt:  time.Now(),
		events:     events,
	}
}

// Events returns the hub for wiring producers.
func (s *Server) Events() *EventHub { return s.events }

// Start starts the HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Minute, // synchronous tools/call can run as long as the slowest tool
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireRead(auth.ResourceTools)).Get("/tools", s.handleListTools)
		r.With(s.requireRead(auth.ResourceTools)).Get("/openapi.json", s.handleOpenAPI)
		r.With(s.requireWrite(auth.ResourceTools)).Post("/messages", s.handleMessages)
		r.With(s.requireRead(auth.ResourceTools)).Get("/messages", s.handleMessagesInfo)
		r.With(s.requireWrite(auth.ResourceScans)).Post("/scans/start", s.handleScanStart)
		r.With(s.requireRead(auth.ResourceScans)).Get("/scans", s.handleScanList)
		r.With(s.requireRead(auth.ResourceScans)).Get("/scans/{jobID}/status", s.handleScanStatus)
		r.With(s.requireRead(auth.ResourceScans)).Get("/scans/{jobID}/results", s.handleScanResults)
		r.With(s.requireWrite(auth.ResourceScans)).Post("/scans/{jobID}/cancel", s.handleScanCancel)
		r.With(s.requireRead(auth.ResourceEvents)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
