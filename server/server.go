// Package server hosts the events HTTP endpoint and wires the adapter,
// middleware stack, and metrics around the mention pipeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swen128/slack-gpt/config"
	"github.com/swen128/slack-gpt/server/metrics"
	"github.com/swen128/slack-gpt/server/middleware"
	"go.uber.org/zap"
)

// Router handles HTTP routing
type Router struct {
	router chi.Router
}

// NewRouter creates a new router around the events adapter.
func NewRouter(eventsHandler http.Handler, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.PrometheusMetrics(m))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(cfg.RateLimit))
	}

	events := eventsHandler
	if cfg.Queue.Enabled {
		qm := middleware.NewQueueMiddleware(middleware.QueueConfig{
			MaxSize: cfg.Queue.MaxSize,
			Metrics: m,
		})
		events = qm.Handler(events)
	}

	// Mount routes
	r.Post("/slack/events", events.ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			logger.Error("Failed to encode health response", zap.Error(err))
		}
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return &Router{router: r}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Start starts the server and blocks until ctx is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
