// Package api serves the optional read-only status API. It is disabled
// by default; when enabled it binds to loopback unless configured
// otherwise and exposes the monitor's last published snapshot, recent
// event history, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"lanwatch/internal/config"
	"lanwatch/internal/logging"
	"lanwatch/internal/monitor"
	"lanwatch/internal/store"
)

// Server timeouts.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second

	defaultEventLimit = 50
	maxEventLimit     = 500
)

// StatusProvider supplies the current presence snapshot. Satisfied by
// monitor.Monitor.
type StatusProvider interface {
	Status() *monitor.Snapshot
}

// Server is the HTTP status server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	provider   StatusProvider
	store      *store.Store
	log        *logging.Logger
}

// New creates a server. Store may be nil, in which case the events
// endpoint reports history as unavailable. The metrics handler is
// mounted as given so the server does not depend on the metrics
// package directly.
func New(cfg config.APIConfig, provider StatusProvider, st *store.Store, metricsHandler http.Handler, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}

	s := &Server{
		router:   mux.NewRouter(),
		provider: provider,
		store:    st,
		log:      log.WithComponent("api"),
	}
	s.setupRoutes(metricsHandler)

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(s.router),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) setupRoutes(metricsHandler http.Handler) {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.devicesHandler).Methods(http.MethodGet)
	api.HandleFunc("/events", s.eventsHandler).Methods(http.MethodGet)
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("status API listening", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	snap := s.provider.Status()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated_at": snap.UpdatedAt,
		"cycle":      snap.Cycle,
		"strategy":   snap.Strategy,
		"online":     snap.Online,
		"tracked":    len(snap.Devices),
	})
}

func (s *Server) devicesHandler(w http.ResponseWriter, _ *http.Request) {
	snap := s.provider.Status()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated_at": snap.UpdatedAt,
		"devices":    snap.Devices,
	})
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "event history disabled, configure database.path")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := s.store.RecentEvents(r.Context(), limit)
	if err != nil {
		s.log.Error("querying events failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "querying events failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
