// Package server exposes the pricing cache over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Cardboom/cardboomtest-sub005/internal/platform/observability"
	"github.com/Cardboom/cardboomtest-sub005/internal/pricing"
	"github.com/Cardboom/cardboomtest-sub005/internal/report"
	"github.com/Cardboom/cardboomtest-sub005/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port int
}

// Deps are the server's collaborators. HealthReporter and Metrics may be nil.
type Deps struct {
	Pricing  *pricing.Service
	Reporter *report.Reporter
	Health   store.HealthReporter
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// Server serves the pricing API plus health and metrics endpoints.
type Server struct {
	deps   Deps
	logger *observability.Logger
	http   *http.Server
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	s := &Server{
		deps:   deps,
		logger: logger,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", s.handleListItems)
		r.Get("/items/{id}/price", s.handleItemPrice)
		r.Get("/items/{id}/history", s.handleItemHistory)
		r.Delete("/cache", s.handleInvalidateAll)
		r.Delete("/cache/{id}", s.handleInvalidateItem)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Get("/errors/recent", s.handleRecentErrors)
	})

	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
