// Package server exposes health, Prometheus metrics and live run status over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nbaodds/backfill/internal/backfill"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// StatusSource reports the progress of the current or last run
type StatusSource interface {
	Snapshot() backfill.Summary
}

// Dependency is an optional backing service reported by /health
type Dependency struct {
	Name   string
	Health func(ctx context.Context) error
	Stats  func() map[string]interface{}
}

// NewRouter builds the status routes
func NewRouter(status StatusSource, deps ...Dependency) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		code, body := health(r.Context(), deps)
		respondJSON(w, code, body)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, status.Snapshot())
	})

	return r
}

// Server runs the status routes until shut down
type Server struct {
	http *http.Server
}

// New creates a server listening on port
func New(port int, status StatusSource, deps ...Dependency) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      NewRouter(status, deps...),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("Starting status server")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Status server failed")
		}
	}()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// health checks every dependency; any failure reports the service as degraded
func health(ctx context.Context, deps []Dependency) (int, map[string]interface{}) {
	code := http.StatusOK
	body := map[string]interface{}{
		"status":  "healthy",
		"service": "nba-odds-backfill",
	}
	if len(deps) == 0 {
		return code, body
	}

	checks := make(map[string]string, len(deps))
	stats := make(map[string]interface{})
	for _, dep := range deps {
		checks[dep.Name] = "ok"
		if dep.Health != nil {
			if err := dep.Health(ctx); err != nil {
				checks[dep.Name] = err.Error()
				code = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		if dep.Stats != nil {
			stats[dep.Name] = dep.Stats()
		}
	}

	body["checks"] = checks
	if len(stats) > 0 {
		body["stats"] = stats
	}
	return code, body
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
