package config

import (
	"fmt"
	"strings"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// EnvironmentTier is the deployment context that selects the access policy.
type EnvironmentTier string

const (
	TierDevelopment EnvironmentTier = "development"
	TierStaging     EnvironmentTier = "staging"
	TierTest        EnvironmentTier = "test"
	TierProduction  EnvironmentTier = "production"
)

// AccessPolicy is what the environment gate does with a request.
type AccessPolicy int

const (
	PolicyBypass AccessPolicy = iota
	PolicyBasicAuth
)

func (p AccessPolicy) String() string {
	if p == PolicyBasicAuth {
		return "basic-auth"
	}
	return "bypass"
}

// ParseTier accepts the canonical names plus the common short forms.
func ParseTier(s string) (EnvironmentTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development", "local":
		return TierDevelopment, nil
	case "staging", "stage", "preview":
		return TierStaging, nil
	case "test", "testing":
		return TierTest, nil
	case "prod", "production":
		return TierProduction, nil
	default:
		return "", &domain.ConfigError{
			Reason: fmt.Sprintf("unknown environment %q", s),
			Hint:   "set APP_ENV to development, staging, test or production",
		}
	}
}

// Policy maps the tier to its access policy. Production bypasses the gate
// unless it has been flagged as a staging deployment.
func (t EnvironmentTier) Policy(stagingDeployment bool) AccessPolicy {
	switch t {
	case TierStaging, TierTest:
		return PolicyBasicAuth
	case TierProduction:
		if stagingDeployment {
			return PolicyBasicAuth
		}
		return PolicyBypass
	default:
		return PolicyBypass
	}
}

func (t EnvironmentTier) String() string { return string(t) }
