package llm

import (
	"fmt"
	"os"

	"github.com/docuvec/docuvec/internal/config"
)

// NewProvider creates an LLM provider from the configuration. The API key
// falls back to the provider's conventional environment variable when not
// set in the config file.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(config.APIKeyEnvVar(cfg.Provider))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	var p Provider
	switch cfg.Provider {
	case config.ProviderGoogle:
		p = NewGoogleProvider(apiKey, cfg.Model)
	case config.ProviderOpenAI:
		p = NewOpenAIProvider(apiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, cfg.RequestsPerMinute)
	}
	return p, nil
}
