package config

import (
	"encoding/json"
	"os"

	"github.com/wopr-network/wopr/pkg/types"
)

// Daemon is the top-level daemon configuration, loaded once at startup.
type Daemon struct {
	ListenAddr  string `json:"listenAddr"`
	Enforcement string `json:"enforcement,omitempty"`
}

// DefaultDaemon returns the compiled-in defaults, used when no config file
// is present.
func DefaultDaemon() Daemon {
	return Daemon{
		ListenAddr:  "127.0.0.1:4173",
		Enforcement: string(types.EnforcementWarn),
	}
}

// LoadDaemon reads daemon.json from the base dir, falling back to defaults
// for any field the file omits or the file not existing at all.
func LoadDaemon(p *Paths) (Daemon, error) {
	cfg := DefaultDaemon()

	data, err := os.ReadFile(p.Base + "/daemon.json")
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ResolveEnforcement applies the documented precedence: environment
// variable override, then the stored value, then the compiled default.
// Only off|warn|enforce are accepted from the environment; any other
// value is ignored and the next source is tried.
func ResolveEnforcement(stored types.EnforcementMode) types.EnforcementMode {
	if v := os.Getenv("WOPR_SECURITY_ENFORCEMENT"); v != "" {
		if mode, ok := types.ParseEnforcementMode(v); ok {
			return mode
		}
	}
	if stored != "" {
		return stored
	}
	return types.EnforcementWarn
}

// providerEnvVar is the well-known fallback environment variable for a
// provider id when no credential file exists for it.
func providerEnvVar(providerID string) string {
	switch providerID {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "bedrock":
		return "AWS_ACCESS_KEY_ID"
	default:
		return ""
	}
}

// EnvCredential returns the API key for a provider from its well-known
// environment variable, or "" if none is set or known.
func EnvCredential(providerID string) string {
	if envVar := providerEnvVar(providerID); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}
