package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "config.yaml"

type Config struct {
	// Environment is the raw tier name; Tier is the resolved value.
	Environment string `koanf:"environment"`
	// StagingDeployment marks production infrastructure serving a staging site.
	StagingDeployment bool            `koanf:"staging_deployment"`
	Tier              EnvironmentTier `koanf:"-"`

	Server    ServerConfig    `koanf:"server"`
	N8N       N8NConfig       `koanf:"n8n"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Auth      AuthConfig      `koanf:"auth"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Workflows WorkflowsConfig `koanf:"workflows"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"`
}

type N8NConfig struct {
	APIURL string `koanf:"api_url"`
	APIKey string `koanf:"api_key"`
	// APIKeyHeader selects how the key is sent. "Authorization" sends a bearer
	// token; anything else (e.g. X-N8N-API-KEY) carries the raw key.
	APIKeyHeader string `koanf:"api_key_header"`
	WebhookURL   string `koanf:"webhook_url"`
	Timeout      string `koanf:"timeout"`
}

type WebhookConfig struct {
	Secret             string   `koanf:"secret"`
	SignatureHeader    string   `koanf:"signature_header"`
	TimestampHeader    string   `koanf:"timestamp_header"`
	TimestampTolerance string   `koanf:"timestamp_tolerance"`
	RequiredFields     []string `koanf:"required_fields"`
	ForwardRetries     int      `koanf:"forward_retries"`
	BlockPrivate       bool     `koanf:"block_private"`
}

type AuthConfig struct {
	Username    string   `koanf:"username"`
	Password    string   `koanf:"password"`
	Realm       string   `koanf:"realm"`
	IPAllowlist []string `koanf:"ip_allowlist"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type WorkflowsConfig struct {
	Dir string `koanf:"dir"`
}

// flatEnv maps the environment variable names used by the site's deploy
// scripts onto config keys.
var flatEnv = map[string]string{
	"APP_ENV":            "environment",
	"STAGING_DEPLOYMENT": "staging_deployment",
	"PORT":               "server.port",
	"N8N_API_URL":        "n8n.api_url",
	"N8N_API_KEY":        "n8n.api_key",
	"N8N_API_KEY_HEADER": "n8n.api_key_header",
	"N8N_WEBHOOK_URL":    "n8n.webhook_url",
	"WEBHOOK_SECRET":     "webhook.secret",
	"STAGING_USERNAME":   "auth.username",
	"STAGING_PASSWORD":   "auth.password",
	"IP_ALLOWLIST":       "auth.ip_allowlist",
	"WORKFLOWS_DIR":      "workflows.dir",
}

// listKeys are comma separated when supplied through the environment.
var listKeys = map[string]bool{
	"auth.ip_allowlist":       true,
	"webhook.required_fields": true,
}

var defaults = map[string]any{
	"environment":                 "development",
	"server.port":                 8080,
	"server.request_timeout":      "30s",
	"n8n.api_key_header":          "Authorization",
	"n8n.timeout":                 "30s",
	"webhook.signature_header":    "X-Webhook-Signature",
	"webhook.timestamp_tolerance": "0s",
	"webhook.required_fields":     []string{"event"},
	"auth.realm":                  "Shonen Ark Staging",
	"storage.type":                "sqlite",
	"storage.sqlite.path":         "./data/ark.db",
	"telemetry.service_name":      "ark-gateway",
	"workflows.dir":               "./workflows",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (optional, missing is fine), then the flat environment
// names, then ARK_ prefixed variables (ARK_SERVER__PORT -> server.port).
// The environment tier is resolved here, once.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultPath
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, &domain.ConfigError{Reason: fmt.Sprintf("read %s: %v", path, err)}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		name, ok := flatEnv[key]
		if !ok {
			return "", nil
		}
		return name, envValue(name, value)
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue("ARK_", ".", func(key, value string) (string, any) {
		name := strings.Replace(strings.ToLower(strings.TrimPrefix(key, "ARK_")), "__", ".", -1)
		return name, envValue(name, value)
	}), nil); err != nil {
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Secrets in the config file may reference the environment as ${VAR}.
	cfg.N8N.APIKey = substituteEnvVars(cfg.N8N.APIKey)
	cfg.Webhook.Secret = substituteEnvVars(cfg.Webhook.Secret)
	cfg.Auth.Password = substituteEnvVars(cfg.Auth.Password)

	tier, err := ParseTier(cfg.Environment)
	if err != nil {
		return nil, err
	}
	cfg.Tier = tier

	if err := cfg.validateDurations(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateDurations rejects duration settings time.ParseDuration cannot read,
// such as "30" without a unit. Empty values fall back to defaults.
func (c *Config) validateDurations() error {
	for _, d := range []struct{ key, env, value string }{
		{"server.request_timeout", "ARK_SERVER__REQUEST_TIMEOUT", c.Server.RequestTimeout},
		{"n8n.timeout", "ARK_N8N__TIMEOUT", c.N8N.Timeout},
		{"webhook.timestamp_tolerance", "ARK_WEBHOOK__TIMESTAMP_TOLERANCE", c.Webhook.TimestampTolerance},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return &domain.ConfigError{
				Reason: fmt.Sprintf("invalid duration %q for %s", d.value, d.key),
				Hint:   fmt.Sprintf("set %s with a unit, e.g. 30s", d.env),
			}
		}
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func envValue(key, value string) any {
	if !listKeys[key] {
		return value
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RequireN8N returns a ConfigError naming every missing setting needed to
// talk to the n8n API.
func (c *Config) RequireN8N() error {
	var missing []string
	if c.N8N.APIURL == "" {
		missing = append(missing, "N8N_API_URL")
	}
	if c.N8N.APIKey == "" {
		missing = append(missing, "N8N_API_KEY")
	}
	if len(missing) > 0 {
		return &domain.ConfigError{
			Missing: missing,
			Hint:    "set " + strings.Join(missing, " and ") + " in the environment or .env",
		}
	}
	return nil
}

// RequireServer checks the settings the webhook gateway cannot run without.
func (c *Config) RequireServer() error {
	var missing []string
	if c.Webhook.Secret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}
	if c.Tier.Policy(c.StagingDeployment) == PolicyBasicAuth && (c.Auth.Username == "" || c.Auth.Password == "") {
		missing = append(missing, "STAGING_USERNAME", "STAGING_PASSWORD")
	}
	if len(missing) > 0 {
		return &domain.ConfigError{
			Missing: missing,
			Hint:    "set " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// Duration parses a duration setting, falling back to def when empty. Load
// has already rejected invalid values.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
