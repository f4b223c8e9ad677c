package config

// ProviderType identifies an AI provider for metadata extraction and embeddings.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderOpenAI ProviderType = "openai"
)

// Config is the top-level docuvec configuration, corresponding to docuvec.yml.
type Config struct {
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	DataDir  string         `yaml:"data_dir" koanf:"data_dir"`
	Storage  StorageConfig  `yaml:"storage" koanf:"storage"`
	OCR      OCRConfig      `yaml:"ocr" koanf:"ocr"`
	AI       AIConfig       `yaml:"ai" koanf:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline" koanf:"pipeline"`
	Search   SearchConfig   `yaml:"search" koanf:"search"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port" koanf:"port"`
	BaseURL  string `yaml:"base_url" koanf:"base_url"`
	AllowAll bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	Root string `yaml:"root" koanf:"root"` // directory for raw uploaded files
}

// OCRConfig holds text-extraction engine settings.
type OCRConfig struct {
	Endpoint string `yaml:"endpoint" koanf:"endpoint"` // HTTP endpoint of the OCR engine
	Language string `yaml:"language" koanf:"language"` // OCR language hint, e.g. "spa"
}

// AIConfig holds provider selection, credentials and model names.
type AIConfig struct {
	Provider       ProviderType `yaml:"provider" koanf:"provider"`
	APIKey         string       `yaml:"api_key" koanf:"api_key"`
	Model          string       `yaml:"model" koanf:"model"`
	EmbeddingModel string       `yaml:"embedding_model" koanf:"embedding_model"`
	// EmbeddingDimensions is the length of every embedding vector; it is
	// fixed system-wide and must match the configured embedding model.
	EmbeddingDimensions int `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	// RateLimitRetries and RateLimitBaseDelaySeconds form the single
	// adapter-level retry policy applied to rate-limited AI calls.
	RateLimitRetries          int `yaml:"rate_limit_retries" koanf:"rate_limit_retries"`
	RateLimitBaseDelaySeconds int `yaml:"rate_limit_base_delay_seconds" koanf:"rate_limit_base_delay_seconds"`
	RequestsPerMinute         int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// PipelineConfig controls the ingestion pipeline.
type PipelineConfig struct {
	Workers             int   `yaml:"workers" koanf:"workers"`
	MaxUploadBytes      int64 `yaml:"max_upload_bytes" koanf:"max_upload_bytes"`
	ChunkSize           int   `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap        int   `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	MinTextLength       int   `yaml:"min_text_length" koanf:"min_text_length"`
	MetadataPrefixChars int   `yaml:"metadata_prefix_chars" koanf:"metadata_prefix_chars"`
	MaxAttempts         int   `yaml:"max_attempts" koanf:"max_attempts"`
	// RetryDelaysSeconds is the wait after the nth failed attempt; the last
	// entry repeats when MaxAttempts exceeds the schedule. Defaults to
	// 60, 300, 900.
	RetryDelaysSeconds []int `yaml:"retry_delays_seconds" koanf:"retry_delays_seconds"`
}

// SearchConfig controls the semantic search path.
type SearchConfig struct {
	MaxPageSize    int `yaml:"max_page_size" koanf:"max_page_size"`
	CandidateLimit int `yaml:"candidate_limit" koanf:"candidate_limit"`
	// MaxDistance is the cosine-distance cutoff; candidates further away are
	// discarded. Cosine distance lies in [0,2], lower means more similar.
	MaxDistance float64 `yaml:"max_distance" koanf:"max_distance"`
	MinQueryLen int     `yaml:"min_query_len" koanf:"min_query_len"`
	MaxQueryLen int     `yaml:"max_query_len" koanf:"max_query_len"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	Dev   bool   `yaml:"dev" koanf:"dev"`
}
