package runtime

import (
	"fmt"
	"log/slog"

	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/server"
	"github.com/shonenark/ark-gateway/internal/storage"
	"github.com/shonenark/ark-gateway/internal/storage/memory"
	"github.com/shonenark/ark-gateway/internal/storage/sqlite"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		g.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path plus the environment.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger != nil {
			g.logger = logger
		}
		return nil
	}
}

// WithSQLite records history in a SQLite database at path.
func WithSQLite(path string) Option {
	return func(g *Gateway) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		g.store = store
		g.ownsStore = true
		return nil
	}
}

// WithMemoryStorage keeps history in memory only.
func WithMemoryStorage() Option {
	return func(g *Gateway) error {
		g.store = memory.New()
		g.ownsStore = true
		return nil
	}
}

// WithStore uses a caller-owned store. The gateway never closes it.
func WithStore(store storage.HistoryStore) Option {
	return func(g *Gateway) error {
		g.store = store
		g.ownsStore = false
		return nil
	}
}

// WithForwarder replaces the n8n webhook forwarder.
func WithForwarder(f server.Forwarder) Option {
	return func(g *Gateway) error {
		g.forwarder = f
		return nil
	}
}
