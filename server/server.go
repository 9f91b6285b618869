// Package server wires the HTTP router, middleware and handlers of the
// alternatives API and manages the server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/giygas/medicaments-alternatives/config"
	"github.com/giygas/medicaments-alternatives/handlers"
	"github.com/giygas/medicaments-alternatives/health"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/metrics"
	"github.com/giygas/medicaments-alternatives/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server
type Server struct {
	server        *http.Server
	router        chi.Router
	dataStore     interfaces.DataStore
	config        *config.Config
	httpHandler   *handlers.HTTPHandlerImpl
	healthChecker interfaces.HealthChecker
	rateLimiter   *RateLimiter
	cleanupCtx    context.Context
	stopCleanup   context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, dataStore interfaces.DataStore) *Server {
	router := chi.NewRouter()
	healthChecker := health.NewHealthChecker(dataStore, cfg.ReloadSchedule)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())

	s := &Server{
		server: &http.Server{
			Handler:           router,
			Addr:              cfg.Address + ":" + cfg.Port,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    int(cfg.MaxHeaderSize),
		},
		router:        router,
		dataStore:     dataStore,
		config:        cfg,
		httpHandler:   handlers.NewHTTPHandler(dataStore, validation.NewDataValidator(), healthChecker),
		healthChecker: healthChecker,
		rateLimiter:   NewRateLimiter(),
		cleanupCtx:    cleanupCtx,
		stopCleanup:   stopCleanup,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if s.config.Env == config.EnvProduction {
		s.router.Use(BlockDirectAccessMiddleware) // before RealIPMiddleware to see the original RemoteAddr
	}
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.Logger()))
	s.router.Use(metrics.Metrics)
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(middleware.Compress(5, "application/json"))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Route("/medications", func(r chi.Router) {
		r.Get("/", s.httpHandler.SearchMedications)
		r.Get("/{index}", s.httpHandler.GetMedication)
		r.Get("/{index}/alternatives", s.httpHandler.GetAlternatives)
	})
	s.router.Get("/stats", s.httpHandler.GetStats)
	s.router.Get("/health", s.httpHandler.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondWithError(w, http.StatusNotFound, "Route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server and blocks until it stops. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	go s.rateLimiter.RunCleanup(s.cleanupCtx, 30*time.Minute)

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.stopCleanup()

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}
