package embeddings

import (
	"fmt"
	"os"
	"time"

	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/retry"
)

// NewEmbedder creates an embedder from the configuration, checking that the
// model's vector size matches the configured system-wide dimensionality.
func NewEmbedder(cfg config.AIConfig) (Embedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(config.APIKeyEnvVar(cfg.Provider))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.RateLimitRetries,
		BaseDelay:   time.Duration(cfg.RateLimitBaseDelaySeconds) * time.Second,
	}

	var e Embedder
	switch cfg.Provider {
	case config.ProviderGoogle:
		e = NewGoogleEmbedder(apiKey, GoogleModel(cfg.EmbeddingModel), policy)
	case config.ProviderOpenAI:
		e = NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.EmbeddingModel), policy)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if e.Dimensions() != cfg.EmbeddingDimensions {
		return nil, fmt.Errorf("embedding model %q produces %d-dimensional vectors, config expects %d",
			cfg.EmbeddingModel, e.Dimensions(), cfg.EmbeddingDimensions)
	}
	return e, nil
}
