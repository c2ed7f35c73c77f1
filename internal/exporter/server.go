package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sanket-telunagi/k8sfs/internal/metrics"
	"github.com/sanket-telunagi/k8sfs/internal/middleware"
	"github.com/sanket-telunagi/k8sfs/internal/model"
	"github.com/sanket-telunagi/k8sfs/internal/report"
	"github.com/sanket-telunagi/k8sfs/internal/timeseries"
	"github.com/sanket-telunagi/k8sfs/internal/version"
)

// Server exposes metrics and the latest snapshot over HTTP
type Server struct {
	logger  *zap.Logger
	router  chi.Router
	store   *SnapshotStore
	metrics *metrics.Prometheus
	history timeseries.Store
	http    *http.Server
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithHistory serves the series of store under /api/v1/history
func WithHistory(store timeseries.Store) ServerOption {
	return func(s *Server) {
		s.history = store
	}
}

// NewServer creates a server listening on addr
func NewServer(logger *zap.Logger, addr string, store *SnapshotStore, m *metrics.Prometheus, opts ...ServerOption) *Server {
	s := &Server{
		logger:  logger,
		router:  chi.NewRouter(),
		store:   store,
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.RequestIDResponse)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Prometheus(s.metrics))
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	// Version endpoint
	s.router.Get("/version", s.handleVersion)

	s.router.Handle("/metrics", s.metrics.Handler())

	etag := middleware.NewETagMiddleware(s.logger, 30)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(etag.Middleware)

		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/snapshot/{namespace}", s.handleNamespaceSnapshot)
		r.Get("/summary", s.handleSummary)
		r.Get("/nodes", s.handleNodes)

		if s.history != nil {
			r.Get("/history", s.handleHistoryKeys)
			r.Get("/history/{key}", s.handleHistorySeries)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the first cycle has been stored
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.store.Latest(); !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first collection"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	cycle, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleNamespaceSnapshot(w http.ResponseWriter, r *http.Request) {
	cycle, ok := s.latest(w)
	if !ok {
		return
	}

	namespace := chi.URLParam(r, "namespace")
	nodes, found := cycle.Snapshot[namespace]
	if !found {
		writeError(w, http.StatusNotFound, "namespace not collected: "+namespace)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycleId":     cycle.ID,
		"completedAt": cycle.CompletedAt,
		"namespace":   namespace,
		"nodes":       nodes,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	cycle, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.SummarizeByNamespace(cycle.Snapshot))
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	cycle, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.SummarizeByNode(cycle.Snapshot))
}

func (s *Server) handleHistoryKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": s.history.Keys()})
}

// handleHistorySeries returns the points of one series, optionally limited by ?since=<RFC3339>
func (s *Server) handleHistorySeries(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter: expected RFC3339 timestamp")
			return
		}
		since = parsed
	}

	series, ok := s.history.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown series: "+key)
		return
	}

	points := series.GetSince(since)
	if points == nil {
		points = []timeseries.Point{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"series": key,
		"points": points,
	})
}

func (s *Server) latest(w http.ResponseWriter) (Cycle, bool) {
	cycle, ok := s.store.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no collection has completed yet")
		return Cycle{}, false
	}
	if cycle.Snapshot == nil {
		cycle.Snapshot = model.Snapshot{}
	}
	return cycle, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}
