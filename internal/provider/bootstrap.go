package provider

import (
	"context"

	"github.com/wopr-network/wopr/internal/logging"
)

// BootstrapConfig is the minimal per-provider configuration the daemon
// config file carries: which provider ids to construct, plus any
// non-credential overrides.
type BootstrapConfig struct {
	Anthropic *AnthropicConfig
	OpenAI    *OpenAIConfig
	Bedrock   *BedrockConfig
}

// Bootstrap constructs and registers every configured provider, filling
// in credentials from store for any that didn't have one set explicitly.
// A provider that fails to construct (missing credential, bad region) is
// logged and skipped rather than aborting the whole daemon, mirroring the
// teacher's InitializeProviders "log error but continue" behavior.
func Bootstrap(ctx context.Context, cfg BootstrapConfig, store *CredentialStore) *Registry {
	reg := NewRegistry()

	if cfg.Anthropic != nil {
		ac := *cfg.Anthropic
		if ac.APIKey == "" {
			if cred, err := store.Get("anthropic"); err == nil {
				ac.APIKey = cred.APIKey
				if ac.BaseURL == "" {
					ac.BaseURL = cred.BaseURL
				}
			}
		}
		if p, err := NewAnthropicProvider(ac); err != nil {
			logging.Warn().Err(err).Msg("provider: anthropic unavailable")
		} else {
			reg.Register(p)
		}
	}

	if cfg.OpenAI != nil {
		oc := *cfg.OpenAI
		if oc.APIKey == "" {
			if cred, err := store.Get("openai"); err == nil {
				oc.APIKey = cred.APIKey
				if oc.BaseURL == "" {
					oc.BaseURL = cred.BaseURL
				}
			}
		}
		if p, err := NewOpenAIProvider(oc); err != nil {
			logging.Warn().Err(err).Msg("provider: openai unavailable")
		} else {
			reg.Register(p)
		}
	}

	if cfg.Bedrock != nil {
		bc := *cfg.Bedrock
		if bc.AccessKey == "" {
			if cred, err := store.Get("bedrock"); err == nil {
				bc.AccessKey = cred.APIKey
			}
		}
		if p, err := NewBedrockProvider(ctx, bc); err != nil {
			logging.Warn().Err(err).Msg("provider: bedrock unavailable")
		} else {
			reg.Register(p)
		}
	}

	reg.CheckHealth()
	return reg
}
