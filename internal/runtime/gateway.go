// Package runtime assembles the webhook gateway from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shonenark/ark-gateway/internal/auth"
	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/server"
	"github.com/shonenark/ark-gateway/internal/signature"
	"github.com/shonenark/ark-gateway/internal/storage"
	"github.com/shonenark/ark-gateway/internal/telemetry"
)

// Gateway is the webhook gateway: HTTP server, forwarder, history store
// and tracing, built from one Config.
type Gateway struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.HistoryStore
	ownsStore bool
	forwarder server.Forwarder

	server         *server.Server
	tracerShutdown func(context.Context) error
	errCh          chan error

	mu      sync.Mutex
	started bool
}

// New creates a Gateway with the given options. A config is required;
// storage defaults to whatever the config selects.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}
	if err := gw.cfg.RequireServer(); err != nil {
		return nil, err
	}

	if gw.store == nil {
		store, err := OpenStore(gw.cfg.Storage)
		if err != nil {
			return nil, err
		}
		gw.store = store
		gw.ownsStore = store != nil
	}

	if err := gw.build(); err != nil {
		gw.closeStore()
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) build() error {
	cfg := g.cfg

	var validatorOpts []signature.Option
	validatorOpts = append(validatorOpts, signature.WithHeader(cfg.Webhook.SignatureHeader))
	if cfg.Webhook.TimestampHeader != "" {
		validatorOpts = append(validatorOpts,
			signature.WithTimestamp(cfg.Webhook.TimestampHeader, config.Duration(cfg.Webhook.TimestampTolerance, 0)))
	}
	validator := signature.NewValidator(cfg.Webhook.Secret, validatorOpts...)

	if g.forwarder == nil {
		g.forwarder = NewForwarder(cfg)
	}

	webhooks := server.NewWebhookHandler(validator, g.forwarder, cfg.Webhook.RequiredFields, g.logger)

	var admin *server.AdminHandler
	if g.store != nil {
		admin = server.NewAdminHandler(g.store)
	}

	srv, err := server.New(server.Config{
		Port:              cfg.Server.Port,
		ServiceName:       cfg.Telemetry.ServiceName,
		Tier:              cfg.Tier,
		StagingDeployment: cfg.StagingDeployment,
		Credentials:       auth.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password},
		Realm:             cfg.Auth.Realm,
		Allowlist:         cfg.Auth.IPAllowlist,
		RequestTimeout:    config.Duration(cfg.Server.RequestTimeout, 30*time.Second),
		Tracing:           cfg.Telemetry.Enabled,
	}, g.logger, webhooks, admin)
	if err != nil {
		return err
	}
	g.server = srv
	return nil
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler { return g.server.Router }

// Store returns the history store, or nil when storage is disabled.
func (g *Gateway) Store() storage.HistoryStore { return g.store }

// Start begins serving in the background. Listener failures are reported
// by Wait.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fmt.Errorf("gateway already started")
	}

	if g.cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(g.cfg.Telemetry.ServiceName, nil, g.logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		g.tracerShutdown = shutdown
	}

	g.errCh = make(chan error, 1)
	go func() {
		g.errCh <- g.server.Start()
	}()
	g.started = true

	g.logger.Info("gateway started",
		slog.Int("port", g.cfg.Server.Port),
		slog.String("environment", g.cfg.Tier.String()),
		slog.String("access_policy", g.cfg.Tier.Policy(g.cfg.StagingDeployment).String()),
		slog.Bool("forwarding", g.cfg.N8N.WebhookURL != ""),
	)
	return nil
}

// Wait blocks until the server stops on its own or ctx is done.
func (g *Gateway) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-g.errCh:
		return err
	}
}

// Run starts the gateway, blocks until ctx is done, then shuts down within
// grace.
func (g *Gateway) Run(ctx context.Context, grace time.Duration) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	waitErr := g.Wait(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return errors.Join(waitErr, g.Shutdown(shutdownCtx))
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	var errs []error
	if g.started {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		g.started = false
	}

	if g.tracerShutdown != nil {
		if err := g.tracerShutdown(ctx); err != nil {
			g.logger.Error("failed to flush traces", slog.String("error", err.Error()))
		}
		g.tracerShutdown = nil
	}

	g.closeStore()

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

func (g *Gateway) closeStore() {
	if g.store == nil || !g.ownsStore {
		return
	}
	if err := g.store.Close(); err != nil {
		g.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}
	g.store = nil
}
