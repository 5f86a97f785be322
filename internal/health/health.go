// Package health provides the HTTP health check and metrics endpoints.
//
// Docker and Kubernetes use /healthz and /readyz to monitor the daemon's
// liveness. /readyz additionally reports the assistant's current state so
// a stuck pipeline is visible. Prometheus scrapes /metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateFunc reports the assistant state name for /readyz.
type StateFunc func() string

// Server is a lightweight HTTP server that exposes /healthz, /readyz and /metrics.
type Server struct {
	port   int
	state  StateFunc
	logger *slog.Logger
	ready  atomic.Bool
	server *http.Server
}

// New creates a new health check server. state may be nil.
func New(port int, state StateFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{port: port, state: state, logger: logger.With("component", "health")}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler builds the health routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeStatus(w, nil)
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		extra := map[string]string{}
		if s.state != nil {
			extra["assistant"] = s.state()
		}
		s.writeStatus(w, extra)
	})

	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) writeStatus(w http.ResponseWriter, extra map[string]string) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if !s.ready.Load() {
		body["status"] = "not_ready"
		status = http.StatusServiceUnavailable
	}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
