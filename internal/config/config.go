package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DOCUVEC_*). Nested keys use underscores
// twice: DOCUVEC_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: DOCUVEC_AI__API_KEY -> ai.api_key, etc.
	if err := k.Load(env.Provider("DOCUVEC_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "DOCUVEC_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderGoogle: true,
	ProviderOpenAI: true,
}

// Validate checks that the configuration contains valid values. Chunking
// parameters are rejected here, at startup, not at call time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.OCR.Endpoint == "" {
		return fmt.Errorf("ocr.endpoint is required")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("invalid ai.provider %q: must be one of google, openai", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.AI.EmbeddingModel == "" {
		return fmt.Errorf("ai.embedding_model is required")
	}
	if c.AI.EmbeddingDimensions <= 0 {
		return fmt.Errorf("ai.embedding_dimensions must be positive")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.MaxUploadBytes <= 0 {
		return fmt.Errorf("pipeline.max_upload_bytes must be positive")
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive")
	}
	if c.Pipeline.ChunkOverlap < 0 {
		return fmt.Errorf("pipeline.chunk_overlap must be non-negative")
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("pipeline.chunk_overlap (%d) must be smaller than pipeline.chunk_size (%d)",
			c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be at least 1")
	}
	if len(c.Pipeline.RetryDelaysSeconds) == 0 {
		return fmt.Errorf("pipeline.retry_delays_seconds must have at least one entry")
	}
	for _, d := range c.Pipeline.RetryDelaysSeconds {
		if d < 0 {
			return fmt.Errorf("pipeline.retry_delays_seconds entries must be non-negative")
		}
	}

	if c.Search.MaxPageSize < 1 {
		return fmt.Errorf("search.max_page_size must be at least 1")
	}
	if c.Search.CandidateLimit < 1 {
		return fmt.Errorf("search.candidate_limit must be at least 1")
	}
	if c.Search.MaxDistance < 0 || c.Search.MaxDistance > 2 {
		return fmt.Errorf("search.max_distance %v outside the cosine-distance range [0,2]", c.Search.MaxDistance)
	}
	if c.Search.MinQueryLen < 1 || c.Search.MaxQueryLen < c.Search.MinQueryLen {
		return fmt.Errorf("invalid search query length bounds [%d,%d]", c.Search.MinQueryLen, c.Search.MaxQueryLen)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
