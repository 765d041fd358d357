// Package api exposes the recommendation pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-retail/harrier/internal/domain"
	"github.com/opensource-retail/harrier/internal/engine"
	"github.com/opensource-retail/harrier/internal/monitor"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, eng *engine.Engine, mon *monitor.Monitor, bus domain.EventBus, version string) *Server {
	handler := NewHandler(eng, mon, bus, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/api/v1", func(r chi.Router) {
		// Recommendation serving
		r.Post("/recommendations", handler.Recommend)

		// Model metadata
		r.Get("/models/info", handler.ModelInfo)

		// Quality monitoring
		r.Get("/monitoring/statistics", handler.Statistics)
		r.Get("/monitoring/records", handler.Records)
		r.Get("/monitoring/alerts", handler.Alerts)
		r.Get("/monitoring/reports/hourly", handler.HourlyReport)
		r.Get("/monitoring/reports/daily", handler.DailyReport)

		// Degradation thresholds
		r.Get("/degradation/thresholds", handler.GetThresholds)
		r.Put("/degradation/thresholds", handler.UpdateThresholds)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
