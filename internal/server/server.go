// Package server wires the gateway's HTTP surface: public notification
// endpoints behind the auth and admission gates, the admin management
// surface, and health probes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pigeonhq/pigeon/internal/auth"
	"github.com/pigeonhq/pigeon/internal/counter"
	"github.com/pigeonhq/pigeon/internal/credstore"
	"github.com/pigeonhq/pigeon/internal/handler"
	"github.com/pigeonhq/pigeon/internal/queue"
	"github.com/pigeonhq/pigeon/internal/ratelimit"
	"github.com/pigeonhq/pigeon/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	IPRateLimit     int // requests per minute per client IP
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		IPRateLimit:     600,
	}
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Resolver *auth.Resolver
	Creds    credstore.Store
	Admin    credstore.AdminStore // optional
	Counters counter.Store        // optional; nil falls back to no-op gates
	Queue    queue.Queue
	Service  ratelimit.Strategy
	Daily    ratelimit.Strategy
}

// Server is the top-level HTTP server. It owns the chi router and the
// graceful-shutdown lifecycle; everything else is injected via Deps.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server, wires all routes and middleware, and returns it
// ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Service == nil {
		deps.Service = ratelimit.NoOp{}
	}
	if deps.Daily == nil {
		deps.Daily = ratelimit.NoOp{}
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.IPRateLimit > 0 {
		r.Use(middleware.IPLimit(s.cfg.IPRateLimit))
	}

	sysHandler := handler.NewSystemHandler(s.deps.Creds, s.deps.Admin, s.deps.Counters, s.cfg.Version)
	notifHandler := handler.NewNotificationHandler(s.deps.Queue)

	// --- Health checks (no auth required) ---
	r.Get("/healthz", sysHandler.Health)
	r.Get("/readyz", sysHandler.Ready)

	// --- Notification API ---
	r.Route("/v2/notifications", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.deps.Resolver))
		// Admission order matters: the per-service window runs first so a
		// burst is rejected before it burns daily budget.
		r.Use(middleware.Admission(s.deps.Service, s.deps.Counters, s.logger))
		r.Use(middleware.Admission(s.deps.Daily, s.deps.Counters, s.logger))

		r.Post("/", notifHandler.Create)
		r.Post("/sms", notifHandler.CreateSMS)
		r.Post("/push", notifHandler.CreatePush)
	})

	// --- Admin management ---
	r.Route("/v2/admin", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.deps.Resolver))
		r.Use(middleware.RequireAdmin())

		r.Get("/services", sysHandler.ListServices)
		r.Post("/services", sysHandler.CreateService)
		r.Get("/services/{serviceID}", sysHandler.GetService)
		r.Get("/services/{serviceID}/api-keys", sysHandler.ListAPIKeys)
		r.Post("/services/{serviceID}/api-keys", sysHandler.CreateAPIKey)
		r.Delete("/api-keys/{keyID}", sysHandler.RevokeAPIKey)
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
