package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/core"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
)

type HealthServer struct {
	server *http.Server
	ready  atomic.Bool
	stats  atomic.Pointer[core.Stats]
}

func NewHealthServer(addr string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}

	// Default to not ready until explicitly set
	hs.ready.Store(false)

	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/stats", hs.handleStats)

	return hs
}

func (s *HealthServer) Start() {
	go func() {
		logger.Info("Health server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()
}

func (s *HealthServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routes without starting a listener.
func (s *HealthServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HealthServer) SetReady(ready bool) {
	s.ready.Store(ready)
}

// SetStats publishes the counters of the running server on /stats.
func (s *HealthServer) SetStats(stats *core.Stats) {
	s.stats.Store(stats)
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	}
}

func (s *HealthServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Load()
	if stats == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no server running"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats.Snapshot()); err != nil {
		logger.Error("Failed to encode stats", "error", err)
	}
}
