package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/auth"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/config"
	"github.com/terra-clan/grade-compass/internal/health"
	"github.com/terra-clan/grade-compass/internal/models"
)

// StatsReader is the analytics read surface
type StatsReader interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// Server represents the HTTP server: HTML pages, JSON API and live sessions
type Server struct {
	config    config.ServerConfig
	router    *chi.Mux
	catalog   *catalog.Catalog
	gate      *auth.Gate
	sink      analytics.Sink
	stats     StatsReader
	health    *health.Registry
	pages     *renderer
	validator *validator.Validate
}

// NewServer creates a new server
func NewServer(
	cfg config.ServerConfig,
	cat *catalog.Catalog,
	gate *auth.Gate,
	sink analytics.Sink,
	stats StatsReader,
	registry *health.Registry,
) (*Server, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load page templates: %w", err)
	}

	if registry == nil {
		registry = health.NewRegistry()
	}

	s := &Server{
		config:    cfg,
		catalog:   cat,
		gate:      gate,
		sink:      sink,
		stats:     stats,
		health:    registry,
		pages:     pages,
		validator: validator.New(),
	}
	s.setupRouter()
	return s, nil
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Health check (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// Sign-in flow (public)
	r.Get("/login", s.handleLoginPage)
	r.Get("/auth/start", s.handleAuthStart)
	r.Get("/auth/callback", s.handleAuthCallback)
	r.Post("/logout", s.handleLogout)

	// Live session; no request timeout on a long-lived connection
	r.With(s.requirePage).Get("/live", s.handleLive)

	// HTML pages (domain-gated)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(s.requirePage)

		r.Get("/", s.handleCompassPage)
		r.Post("/", s.handleCompassToggle)
		r.With(s.requireAdminPage).Get("/analytics", s.handleAnalyticsPage)
	})

	// API v1 routes (domain-gated, cookie or Bearer session)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.config.PublicURL},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(s.requireAPI)

		r.Get("/me", s.handleMe)

		// Catalog
		r.Route("/grades", func(r chi.Router) {
			r.Get("/", s.handleListGrades)
			r.Get("/{id}", s.handleGetGrade)
		})
		r.Get("/scales", s.handleListScales)

		// Selection
		r.Get("/view", s.handleGetView)
		r.Post("/selection/toggle", s.handleToggle)

		// Analytics (admin)
		r.With(s.requireAdminAPI).Get("/analytics", s.handleGetStats)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
