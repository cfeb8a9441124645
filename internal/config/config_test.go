package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// missingPath points Load at a file that does not exist so only env and
// defaults apply.
func missingPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(missingPath(t))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, TierDevelopment, cfg.Tier)
		assert.Equal(t, "Authorization", cfg.N8N.APIKeyHeader)
		assert.Equal(t, "X-Webhook-Signature", cfg.Webhook.SignatureHeader)
		assert.Equal(t, []string{"event"}, cfg.Webhook.RequiredFields)
		assert.Equal(t, "sqlite", cfg.Storage.Type)
	})

	t.Run("flat env names", func(t *testing.T) {
		t.Setenv("N8N_API_URL", "https://n8n.example.com/api/v1")
		t.Setenv("N8N_API_KEY", "key-123")
		t.Setenv("N8N_API_KEY_HEADER", "X-N8N-API-KEY")
		t.Setenv("APP_ENV", "staging")
		t.Setenv("IP_ALLOWLIST", "10.0.0.1, 192.168.0.0/16")
		t.Setenv("PORT", "9000")

		cfg, err := Load(missingPath(t))
		require.NoError(t, err)

		assert.Equal(t, "https://n8n.example.com/api/v1", cfg.N8N.APIURL)
		assert.Equal(t, "key-123", cfg.N8N.APIKey)
		assert.Equal(t, "X-N8N-API-KEY", cfg.N8N.APIKeyHeader)
		assert.Equal(t, TierStaging, cfg.Tier)
		assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.Auth.IPAllowlist)
		assert.Equal(t, 9000, cfg.Server.Port)
	})

	t.Run("prefixed env overrides flat", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("ARK_SERVER__PORT", "9100")

		cfg, err := Load(missingPath(t))
		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.Server.Port)
	})

	t.Run("yaml file with env substitution", func(t *testing.T) {
		t.Setenv("ARK_TEST_SECRET", "from-env")
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
environment: production
staging_deployment: true
webhook:
  secret: "${ARK_TEST_SECRET}"
  required_fields: [event, user_id]
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, TierProduction, cfg.Tier)
		assert.True(t, cfg.StagingDeployment)
		assert.Equal(t, "from-env", cfg.Webhook.Secret)
		assert.Equal(t, []string{"event", "user_id"}, cfg.Webhook.RequiredFields)
	})

	t.Run("unknown environment", func(t *testing.T) {
		t.Setenv("APP_ENV", "qa-west")

		_, err := Load(missingPath(t))
		require.Error(t, err)
		assert.True(t, domain.IsConfiguration(err))
	})

	t.Run("duration without unit", func(t *testing.T) {
		t.Setenv("ARK_N8N__TIMEOUT", "30")

		_, err := Load(missingPath(t))
		var ce *domain.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, ce.Reason, `invalid duration "30" for n8n.timeout`)
		assert.Contains(t, ce.Hint, "ARK_N8N__TIMEOUT")
	})

	t.Run("valid durations", func(t *testing.T) {
		t.Setenv("ARK_N8N__TIMEOUT", "45s")
		t.Setenv("ARK_SERVER__REQUEST_TIMEOUT", "1m")

		cfg, err := Load(missingPath(t))
		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, Duration(cfg.N8N.Timeout, 0))
		assert.Equal(t, time.Minute, Duration(cfg.Server.RequestTimeout, 0))
	})
}

func TestRequireN8N(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireN8N()
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))

	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"N8N_API_URL", "N8N_API_KEY"}, ce.Missing)
	assert.Contains(t, ce.Hint, "N8N_API_KEY")

	cfg.N8N.APIURL = "http://localhost:5678/api/v1"
	cfg.N8N.APIKey = "k"
	assert.NoError(t, cfg.RequireN8N())
}

func TestRequireServer(t *testing.T) {
	cfg := &Config{Tier: TierStaging}
	cfg.Webhook.Secret = "s"

	var ce *domain.ConfigError
	require.ErrorAs(t, cfg.RequireServer(), &ce)
	assert.Equal(t, []string{"STAGING_USERNAME", "STAGING_PASSWORD"}, ce.Missing)

	cfg.Tier = TierDevelopment
	assert.NoError(t, cfg.RequireServer())
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple substitution", input: "${TEST_VAR}", want: "test-value"},
		{name: "substitution in string", input: "prefix-${TEST_VAR}-suffix", want: "prefix-test-value-suffix"},
		{name: "no substitution", input: "plain-string", want: "plain-string"},
		{name: "undefined var", input: "${UNDEFINED_VAR_ARK}", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.input))
		})
	}
}

func TestTierPolicy(t *testing.T) {
	tests := []struct {
		tier    EnvironmentTier
		staging bool
		want    AccessPolicy
	}{
		{TierDevelopment, false, PolicyBypass},
		{TierDevelopment, true, PolicyBypass},
		{TierStaging, false, PolicyBasicAuth},
		{TierTest, false, PolicyBasicAuth},
		{TierProduction, false, PolicyBypass},
		{TierProduction, true, PolicyBasicAuth},
	}

	for _, tt := range tests {
		t.Run(tt.tier.String()+"/"+tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Policy(tt.staging))
		})
	}
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]EnvironmentTier{
		"":           TierDevelopment,
		"dev":        TierDevelopment,
		"Staging":    TierStaging,
		"test":       TierTest,
		"PRODUCTION": TierProduction,
		"prod":       TierProduction,
	} {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", 0))
	assert.EqualValues(t, 7, Duration("", 7))
	assert.EqualValues(t, 7, Duration("nope", 7))
}
