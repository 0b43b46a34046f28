// Package api exposes the optional HTTP status surface for a crawl run:
// liveness, a progress snapshot, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/crawler"
	"github.com/stellargo/starcrawl/internal/metrics"
)

// StatusSource yields a progress snapshot for a live run. The orchestrator
// satisfies it.
type StatusSource interface {
	Status() crawler.Progress
}

// Server serves the status endpoints over one http.Server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds a server listening on port, reporting progress from
// source.
func NewServer(port int, source StatusSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, source.Status())
	})
	r.Handle("/metrics", metrics.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown is called. It blocks; run it on its own
// goroutine.
func (s *Server) Start() error {
	s.logger.Info("status server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write status response", zap.Error(err))
	}
}
