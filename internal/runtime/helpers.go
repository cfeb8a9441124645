package runtime

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/n8n"
	"github.com/shonenark/ark-gateway/internal/pkg/safehttp"
	"github.com/shonenark/ark-gateway/internal/storage"
	"github.com/shonenark/ark-gateway/internal/storage/memory"
	"github.com/shonenark/ark-gateway/internal/storage/sqlite"
	"github.com/shonenark/ark-gateway/internal/telemetry"
)

// OpenStore opens the history store selected by cfg. Type "none" returns a
// nil store and no error.
func OpenStore(cfg config.StorageConfig) (storage.HistoryStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q (want sqlite, memory or none)", cfg.Type)
	}
}

// NewClient builds the n8n REST client from cfg.
func NewClient(cfg *config.Config) *n8n.Client {
	httpClient := &http.Client{Timeout: config.Duration(cfg.N8N.Timeout, 30*time.Second)}
	if cfg.Telemetry.Enabled {
		httpClient = telemetry.InstrumentClient(httpClient)
	}
	return n8n.NewClient(cfg.N8N.APIURL, cfg.N8N.APIKey,
		n8n.WithHTTPClient(httpClient),
		n8n.WithAuthHeader(cfg.N8N.APIKeyHeader),
	)
}

// NewForwarder builds the webhook forwarder from cfg. With block_private set
// the forwarder refuses to dial private and loopback addresses.
func NewForwarder(cfg *config.Config) *n8n.Forwarder {
	timeout := config.Duration(cfg.N8N.Timeout, 30*time.Second)

	var httpClient *http.Client
	if cfg.Webhook.BlockPrivate {
		httpClient = safehttp.NewClient(timeout)
	} else {
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.Telemetry.Enabled {
		httpClient = telemetry.InstrumentClient(httpClient)
	}

	return n8n.NewForwarder(n8n.ForwarderConfig{
		BaseURL: cfg.N8N.WebhookURL,
		Retries: cfg.Webhook.ForwardRetries,
		Client:  httpClient,
	})
}
