// Package httpserver provides the HTTP REST API for the travel data service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hgj2025/cityinfo-sub001/internal/database"
	"github.com/hgj2025/cityinfo-sub001/internal/observability"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
	"github.com/hgj2025/cityinfo-sub001/internal/review"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal"
)

// WorkflowClient defines the workflow operations used by the HTTP server.
// Satisfied by temporal.CollectionWorkflowClient.
type WorkflowClient interface {
	StartCollectionWorkflow(ctx context.Context, req temporal.CollectionWorkflowRequest, workflowFunc interface{}, input interface{}) (workflowID, runID string, err error)
	QueryWorkflowProgress(ctx context.Context, workflowID, runID string) (int, error)
	Health(ctx context.Context) error
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	workflowClient WorkflowClient
	workflowFunc   interface{} // The Temporal workflow function reference.
	tasks          repository.TaskRepository
	reviews        *review.Service
	places         repository.PlaceRepository
	db             *database.DB
	validate       *validator.Validate
	logger         zerolog.Logger
	metrics        *observability.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
// workflowFunc is the Temporal workflow function reference
// (e.g. workflows.CollectionWorkflow) passed to StartCollectionWorkflow.
// The metrics parameter may be nil (metrics recording will be skipped).
func NewServer(
	cfg Config,
	workflowClient WorkflowClient,
	workflowFunc interface{},
	tasks repository.TaskRepository,
	reviews *review.Service,
	places repository.PlaceRepository,
	db *database.DB,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		workflowClient: workflowClient,
		workflowFunc:   workflowFunc,
		tasks:          tasks,
		reviews:        reviews,
		places:         places,
		db:             db,
		validate:       validator.New(),
		logger:         logger.With().Str("component", "http_server").Logger(),
		metrics:        metrics,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.requestLogMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/collection/tasks", func(r chi.Router) {
			r.Post("/", s.createCollectionTask)
			r.Get("/", s.listCollectionTasks)
			r.Get("/{taskID}", s.getCollectionTask)
			r.Get("/{taskID}/details", s.getCollectionTaskDetails)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", s.listReviews)
			r.Get("/{reviewID}", s.getReview)
			r.Post("/{reviewID}", s.decideReview)
		})

		r.Route("/cities", func(r chi.Router) {
			r.Get("/", s.listCities)
			r.Get("/{cityID}/attractions", s.listCityAttractions)
			r.Get("/{cityID}/restaurants", s.listCityRestaurants)
			r.Get("/{cityID}/hotels", s.listCityHotels)
			r.Get("/{cityID}/overview", s.getCityOverview)
		})
	})

	return r
}

// Router exposes the configured handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including Temporal connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}

	if err := s.workflowClient.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": "healthy",
			"temporal": "unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
		"temporal": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
