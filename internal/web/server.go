// Package web provides the HTTP API and HTMX fragments for control plan
// imports.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/config"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/web/middleware"
)

// Server is the HTTP server for the import service.
type Server struct {
	service *reconcile.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a server over service.
func NewServer(service *reconcile.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)

	writeLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		writeLimit = s.newRateLimiter(s.cfg.Rate.SyncLimit, time.Minute).middleware
	}
	auth := middleware.APIKeyAuth(s.cfg.Security)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/collections", s.handleListCollections)
		r.Get("/collections/{collectionID}", s.handleGetCollection)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/collections", s.handleCreateCollection)
			r.Post("/collections/{collectionID}/preview", s.handlePreview)

			r.With(writeLimit).Post("/collections/{collectionID}/sync", s.handleSync)
			r.With(writeLimit).Post("/collections/{collectionID}/import", s.handleImport)
			// Form target for the import page; the collection comes from the form.
			r.With(writeLimit).Post("/import", s.handleImport)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests and sync
// runs, and stops background work.
func (s *Server) Shutdown(ctx context.Context) error {
	defer func() {
		for _, l := range s.limiters {
			l.stop()
		}
	}()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.service.Limiter().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Close stops background work without touching the listener. Tests that
// never call Start use it.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.stop()
	}
	s.limiters = nil
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
