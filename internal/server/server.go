// Package server provides the HTTP server and routing for Carteira.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"carteira/internal/config"
	"carteira/internal/database"
	baskethandlers "carteira/internal/modules/baskets/handlers"
	calculationhandlers "carteira/internal/modules/calculations/handlers"
	historicalhandlers "carteira/internal/modules/historical/handlers"
	portfoliohandlers "carteira/internal/modules/portfolio/handlers"
	rebalancinghandlers "carteira/internal/modules/rebalancing/handlers"
	"carteira/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	DB          *database.DB
	Config      *config.Config
	Baskets     *baskethandlers.Handler
	Portfolio   *portfoliohandlers.Handler
	Historical  *historicalhandlers.Handler
	Performance *calculationhandlers.Handler
	Rebalancing *rebalancinghandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	db             *database.DB
	cfg            *config.Config
	baskets        *baskethandlers.Handler
	portfolio      *portfoliohandlers.Handler
	historical     *historicalhandlers.Handler
	performance    *calculationhandlers.Handler
	rebalancing    *rebalancinghandlers.Handler
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		db:             cfg.DB,
		cfg:            cfg.Config,
		baskets:        cfg.Baskets,
		portfolio:      cfg.Portfolio,
		historical:     cfg.Historical,
		performance:    cfg.Performance,
		rebalancing:    cfg.Rebalancing,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.DB),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers the scheduler and job instances for status
// reporting and manual triggering via API
func (s *Server) SetJobs(sched *scheduler.Scheduler, stalenessCheck scheduler.Job, cachePrune scheduler.Job) {
	s.systemHandlers.SetJobs(sched, stalenessCheck, cachePrune)
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// System monitoring and operations
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/jobs", s.systemHandlers.HandleJobsStatus)

			// Job triggers (manual operation triggers)
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/staleness-check", s.systemHandlers.HandleTriggerStalenessCheck)
				r.Post("/cache-prune", s.systemHandlers.HandleTriggerCachePrune)
			})
		})

		r.Route("/baskets", s.baskets.Routes)
		r.Route("/portfolio", s.portfolio.Routes)
		r.Route("/historical", s.historical.Routes)
		r.Route("/performance", s.performance.Routes)
		r.Route("/rebalancing", s.rebalancing.Routes)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
