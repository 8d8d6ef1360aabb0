// Package httpserver provides the HTTP API of the profile service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/session"
	"github.com/helixir/profile-service/internal/store"
	"github.com/helixir/profile-service/internal/temporal"
)

// StateStore is the state store the API reads from and dispatches into.
type StateStore interface {
	Snapshot() store.State
	Dispatch(ctx context.Context, s domain.Signal)
}

// DurableClient starts, inspects and cancels durable refresh workflows.
type DurableClient interface {
	StartRefresh(ctx context.Context, in temporal.RefreshWorkflowInput) (workflowID, runID string, err error)
	QueryStatus(ctx context.Context, sessionID string) (*temporal.RefreshStatus, error)
	DescribeRefresh(ctx context.Context, sessionID string) (*temporal.WorkflowDescription, error)
	CancelRefresh(ctx context.Context, sessionID string) error
}

// OutcomeLister lists recorded refresh outcomes.
type OutcomeLister interface {
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.RefreshOutcome, error)
}

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Dependencies are the collaborators of the server. Durable and Outcomes
// are optional; their endpoints answer 501 when unset.
type Dependencies struct {
	Store      StateStore
	Sessions   session.TokenStore
	SessionID  string
	SessionTTL time.Duration
	Retry      profile.RetryPolicy
	Durable    DurableClient
	Outcomes   OutcomeLister
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]Check
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Dependencies
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	s := &Server{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(sessionContextMiddleware(s.deps.SessionID))
	r.Use(requestLogMiddleware(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/session", s.putSession)
		r.Delete("/session", s.deleteSession)

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", s.getProfile)
			r.Post("/refresh", s.refreshProfile)
			r.Post("/refresh/durable", s.startDurableRefresh)
			r.Get("/refresh/durable", s.durableRefreshStatus)
			r.Delete("/refresh/durable", s.cancelDurableRefresh)
			r.Get("/refresh/durable/execution", s.describeDurableRefresh)
			r.Get("/refresh/history", s.refreshHistory)
			r.Post("/deletion-status/refresh", s.refreshDeletionStatus)
			r.Post("/actions/{action}", s.performAction)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler runs every configured check.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ready"}
	for name, check := range s.deps.Checks {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
			body[name] = err.Error()
			continue
		}
		body[name] = "healthy"
	}
	writeJSON(w, status, body)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
