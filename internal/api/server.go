package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server. repo, cache and bus may be nil; the
// endpoints that need them then answer 503.
func NewServer(cfg domain.ServerConfig, svc *levy.Service, engine *rules.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Server {
	handler := NewHandler(svc, engine, repo, cache, bus, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Head("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/levy", func(r chi.Router) {
		r.Post("/calculate", handler.Calculate)
		r.Post("/compute", handler.Compute)
		r.Post("/requests", handler.SubmitRequest)
	})

	// path of the original REST endpoint
	router.Post("/dtal/calculate_ooetourism_levy", handler.Compute)

	router.Get("/assessments/{id}", handler.GetAssessment)

	router.Get("/municipalities/{name}", handler.GetMunicipality)
	router.Get("/activities/{label}", handler.GetActivity)
	router.Get("/rates", handler.GetRates)

	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	router.Post("/reference/reload", handler.ReloadReference)

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

// Handler returns the handler.
func (s *Server) Handler() *Handler {
	return s.handler
}
