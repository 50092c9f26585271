// Copyright 2025 Joseph Cumines
//
// Admin HTTP server exposing health and Prometheus metrics

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/joeycumines/abu/internal/logging"
)

// AdminConfig holds configuration for the admin HTTP server.
// Address is the listen address, e.g. "127.0.0.1:9090".
// Transport is reported by /health; BusyTokens, if set, supplies the
// active busy token count.
type AdminConfig struct {
	Logger     *zap.Logger
	Metrics    *Metrics
	Transport  Transport
	BusyTokens func() int64
	Address    string
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status     string `json:"status"`
	Transport  string `json:"transport,omitempty"`
	ServerTime string `json:"server_time"`
	QueueDepth int    `json:"queue_depth"`
	BusyTokens int64  `json:"busy_tokens"`
	Connected  bool   `json:"connected"`
}

// AdminServer serves GET /health and GET /metrics.
type AdminServer struct {
	config   *AdminConfig
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   atomic.Bool
}

// NewAdminServer creates a new admin server. It does not listen until Start.
func NewAdminServer(config *AdminConfig) *AdminServer {
	if config == nil {
		config = &AdminConfig{}
	}
	s := &AdminServer{
		config: config,
		logger: logging.OrNop(config.Logger).Named("admin"),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the admin router.
func (s *AdminServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())
	return r
}

// Health returns the current health status.
func (s *AdminServer) Health() HealthStatus {
	h := HealthStatus{
		Status:     "ok",
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	}
	if t := s.config.Transport; t != nil {
		h.QueueDepth = t.Queue().Len()
		if st, ok := t.(Status); ok {
			h.Transport = st.Name()
			h.Connected = st.Connected()
		}
	}
	if s.config.BusyTokens != nil {
		h.BusyTokens = s.config.BusyTokens()
	}
	return h
}

// handleHealth handles GET /health for health checks
func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Health()); err != nil {
		s.logger.Warn("failed to encode health response", zap.Error(err))
	}
}

// Start listens on the configured address and serves in the background.
func (s *AdminServer) Start() error {
	if s.closed.Load() {
		return fmt.Errorf("admin server is closed")
	}
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("admin server listening", zap.String("address", ln.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *AdminServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close shuts the server down. Idempotent.
func (s *AdminServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}
	return nil
}
