package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/armash/log-ingestor/internal/metrics"
	"github.com/armash/log-ingestor/internal/stats"
)

// Server exposes health, Prometheus metrics and the run tally over HTTP
// while an ingestion run is in progress.
type Server struct {
	runID   string
	stats   *stats.Stats
	metrics *metrics.Metrics
	started time.Time
}

func New(runID string, st *stats.Stats, m *metrics.Metrics) *Server {
	return &Server{
		runID:   runID,
		stats:   st,
		metrics: m,
		started: time.Now(),
	}
}

// Handler returns the routing for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stats/levels", s.handleLevels)
	mux.HandleFunc("/stats/services", s.handleServices)
	return mux
}

// Start listens on addr and serves until ctx is cancelled. If ready is not
// nil it receives the bound address once the listener is open.
func (s *Server) Start(ctx context.Context, addr string, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if ready != nil {
		ready <- ln.Addr()
	}

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"run_id":    s.runID,
		"uptime_ms": time.Since(s.started).Milliseconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": countItems("level", s.stats.Levels())})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": countItems("service", s.stats.Services())})
}

func countItems(key string, counts []stats.Count) []map[string]any {
	items := make([]map[string]any, 0, len(counts))
	for _, c := range counts {
		items = append(items, map[string]any{key: c.Key, "count": c.Count})
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
