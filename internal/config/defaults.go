package config

// DefaultConfig returns a configuration populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		DataDir: "data",
		Storage: StorageConfig{
			Root: "data/objects",
		},
		OCR: OCRConfig{
			Endpoint: "http://localhost:8884",
			Language: "spa",
		},
		AI: AIConfig{
			Provider:                  ProviderGoogle,
			Model:                     "gemini-1.5-flash",
			EmbeddingModel:            "text-embedding-004",
			EmbeddingDimensions:       768,
			RateLimitRetries:          3,
			RateLimitBaseDelaySeconds: 2,
			RequestsPerMinute:         60,
		},
		Pipeline: PipelineConfig{
			Workers:             3,
			MaxUploadBytes:      50 << 20,
			ChunkSize:           800,
			ChunkOverlap:        100,
			MinTextLength:       10,
			MetadataPrefixChars: 4000,
			MaxAttempts:         3,
			RetryDelaysSeconds:  []int{60, 300, 900},
		},
		Search: SearchConfig{
			MaxPageSize:    50,
			CandidateLimit: 50,
			MaxDistance:    1.0,
			MinQueryLen:    3,
			MaxQueryLen:    500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
