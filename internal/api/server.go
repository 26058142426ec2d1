package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"updown-mm/internal/config"
	"updown-mm/internal/publisher"
)

// Server runs the read-only HTTP/WebSocket dashboard surface alongside the
// trading core: health, a point-in-time snapshot, a lifecycle event stream,
// and Prometheus metrics.
type Server struct {
	cfg      config.DashboardConfig
	hub      *publisher.Hub
	handlers *Handlers
	server   *http.Server
	hubStop  chan struct{}
	logger   *slog.Logger
}

// NewServer builds a Server. hub is the same publisher.Hub the order manager
// publishes lifecycle events to.
func NewServer(cfg config.DashboardConfig, provider MarketSnapshotProvider, fullCfg config.Config, hub *publisher.Hub, logger *slog.Logger) *Server {
	handlers := NewHandlers(provider, fullCfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		hubStop:  make(chan struct{}),
		logger:   logger.With("component", "api-server"),
	}
}

// Start runs the event hub and blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run(s.hubStop)

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server error: %w", err)
	}
	return nil
}

// Stop gracefully drains in-flight requests and stops the event hub.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	close(s.hubStop)
	return err
}
