// Package httpserver serves the researcher lookup form and its JSON API.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/database"
	"github.com/helixir/researcher-lookup-service/internal/domain"
	"github.com/helixir/researcher-lookup-service/internal/lookup"
)

// Searcher is the lookup surface the HTTP layer drives.
type Searcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) *lookup.Result
	ListRecent(ctx context.Context, limit int) ([]*domain.SearchRecord, error)
	GetSearch(ctx context.Context, id uuid.UUID) (*domain.SearchRecord, error)
	HasServerAPIKey() bool
}

var _ Searcher = (*lookup.Service)(nil)

// HealthChecker reports database health. It is nil when persistence is disabled.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	searcher   Searcher
	health     HealthChecker
	pages      *template.Template
	logger     zerolog.Logger

	defaultUseProxies bool
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DefaultUseProxies pre-checks the proxy box and applies to API requests
	// that omit use_proxies.
	DefaultUseProxies bool
}

// NewServer creates a new HTTP server. health may be nil.
func NewServer(cfg Config, searcher Searcher, health HealthChecker, logger zerolog.Logger) *Server {
	s := &Server{
		searcher: searcher,
		health:   health,
		pages:    pageTemplates,
		logger:   logger.With().Str("component", "http-server").Logger(),

		defaultUseProxies: cfg.DefaultUseProxies,
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

// Handler returns the root handler.
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
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Get("/", s.indexPage)
	r.Post("/search", s.searchPage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/researchers/search", s.searchResearchers)
		r.Get("/searches", s.listSearches)
		r.Get("/searches/{searchID}", s.getSearch)
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
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler returns readiness status including the database when enabled.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ready",
			"database": "disabled",
		})
		return
	}

	health := s.health.Health(r.Context())
	if !health.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": database.StatusHealthy,
	})
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
