package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/pipeline"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store"
)

// SnapshotSource yields the current netflow snapshot. The in-memory
// accumulator satisfies this; nil is returned before the first publish.
type SnapshotSource interface {
	Snapshot() *model.NetflowSnapshot
}

// Server is the read-only query surface: the netflow tuple, health, and
// Prometheus metrics. It never writes and never blocks the pipeline.
type Server struct {
	token    string
	source   SnapshotSource
	fallback store.SnapshotReader
	health   *pipeline.Health
	logger   *slog.Logger
}

func NewServer(token string, source SnapshotSource, fallback store.SnapshotReader, health *pipeline.Health, logger *slog.Logger) *Server {
	return &Server{
		token:    token,
		source:   source,
		fallback: fallback,
		health:   health,
		logger:   logger.With("component", "api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/netflow", s.handleNetflow)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is done, then drains with a short shutdown grace.
func (s *Server) Run(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("api server shutdown error", "error", err)
		}
	}()

	s.logger.Info("api server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// handleNetflow serves the consistent (block_number, value, updated_at)
// tuple. The in-memory snapshot is authoritative; before the pipeline has
// published one, the persisted row answers instead.
func (s *Server) handleNetflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.source.Snapshot()
	if snapshot == nil && s.fallback != nil {
		stored, err := s.fallback.Get(r.Context(), s.token)
		if err != nil {
			s.logger.Error("netflow fallback read failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		snapshot = stored
	}
	if snapshot == nil {
		http.Error(w, "no netflow state yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Warn("failed to write netflow response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.health.Snapshot()

	status := http.StatusOK
	if snapshot.Status == string(pipeline.HealthStatusUnhealthy) || snapshot.State == string(pipeline.StateFaulted) {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Warn("failed to write health response", "error", err)
	}
}
