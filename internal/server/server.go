// Package server is the HTTP surface: signed webhooks, the deployment
// history for operators and the middleware chain that gates them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shonenark/ark-gateway/internal/auth"
	"github.com/shonenark/ark-gateway/internal/config"
)

// Config holds what the server needs from the loaded configuration.
type Config struct {
	Port              int
	ServiceName       string
	Tier              config.EnvironmentTier
	StagingDeployment bool
	Credentials       auth.Credentials
	Realm             string
	Allowlist         []string
	RequestTimeout    time.Duration
	Tracing           bool
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	srv    *http.Server
}

// New wires the router. Route layout:
//
//	GET  /health               never gated
//	POST /webhooks/{workflow}  signature checked by the handler
//	GET  /                     allowlist, then the environment policy
//	GET  /admin/deployments... allowlist, then Basic-Auth on every tier
//
// Either handler may be nil, which leaves its routes unmounted.
func New(cfg Config, logger *slog.Logger, webhooks *WebhookHandler, admin *AdminHandler) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	allowlist, err := ParseAllowlist(cfg.Allowlist)
	if err != nil {
		return nil, err
	}
	policy := cfg.Tier.Policy(cfg.StagingDeployment)

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(SecurityHeaders)
	r.Use(SecurityContextMiddleware(cfg.Tier))
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Recoverer)

	if cfg.Tracing {
		name := cfg.ServiceName
		if name == "" {
			name = "ark-gateway"
		}
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, name)
		})
	}

	r.Get("/health", healthHandler(cfg.Tier))

	if webhooks != nil {
		r.Post("/webhooks/{workflow}", webhooks.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(IPAllowlist(allowlist))
		r.Use(EnvironmentGate(policy, cfg.Credentials, cfg.Realm))
		r.Get("/", indexHandler(cfg.ServiceName, cfg.Tier, policy))
	})

	if admin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(IPAllowlist(allowlist))
			r.Use(BasicAuth(cfg.Credentials, cfg.Realm))
			r.Get("/deployments", admin.ListDeployments)
			r.Get("/deployments/{id}", admin.GetDeployment)
		})
	}

	logger.Debug("router configured",
		slog.String("environment", cfg.Tier.String()),
		slog.String("access_policy", policy.String()),
		slog.Bool("allowlist", !allowlist.Empty()),
	)

	return &Server{
		Router: r,
		Port:   cfg.Port,
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
