package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// SummaryProvider exposes the most recent comparison, if any run finished.
type SummaryProvider interface {
	Latest() (domain.Comparison, bool)
}

// Pipeline is what the server needs from the analysis pipeline.
type Pipeline interface {
	ReadinessChecker
	SummaryProvider
}

// Server exposes health, readiness, metrics, and summary HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/summaries and /api/summaries/{dataset} routes. Metrics are served
// from gatherer.
func NewServer(addr string, p Pipeline, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(p))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/summaries", handleSummaries(p))
	mux.HandleFunc("GET /api/summaries/{dataset}", handleDatasetSummary(p))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleSummaries(provider SummaryProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c, ok := provider.Latest()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no completed run yet"})
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleDatasetSummary(provider SummaryProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := provider.Latest()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no completed run yet"})
			return
		}
		name := r.PathValue("dataset")
		for _, s := range c.Summaries {
			if s.Dataset == name {
				writeJSON(w, http.StatusOK, s)
				return
			}
		}
		for _, f := range c.Failures {
			if f.Dataset == name {
				writeJSON(w, http.StatusNotFound, f)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown dataset " + name})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
