package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the agentdata gateway configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Vectorize VectorizeConfig `yaml:"vectorize"`
	Search    SearchConfig    `yaml:"search"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"`
	TagModel   string `yaml:"tag_model"` // chat model for auto-tagging; empty disables tagging
}

// QdrantConfig holds vector store connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	VectorDim  int    `yaml:"vector_dim"`
}

// FirestoreConfig holds metadata store settings.
type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

// CacheConfig holds the embedding cache (Redis) settings.
// Empty addrs disables the cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

// RateLimitConfig holds the vector store rate limiter settings.
type RateLimitConfig struct {
	MinIntervalMS int `yaml:"min_interval_ms"`
	MaxIntervalMS int `yaml:"max_interval_ms"`
}

// VectorizeConfig holds the orchestration budgets. The per-document and
// per-chunk batch budgets are deliberately independent knobs.
type VectorizeConfig struct {
	EmbedTimeoutMS   int `yaml:"embed_timeout_ms"`
	DocTimeoutMS     int `yaml:"doc_timeout_ms"`
	ChunkTimeoutMS   int `yaml:"chunk_timeout_ms"`
	ChunkSize        int `yaml:"chunk_size"`
	BatchTargetMS    int `yaml:"batch_target_ms"`
	MaxTags          int `yaml:"max_tags"`
	MaxBatchSize     int `yaml:"max_batch_size"`
	PreviewLen       int `yaml:"preview_len"`
	TaggingTimeoutMS int `yaml:"tagging_timeout_ms"`
}

// SearchConfig holds the RAG search budgets.
type SearchConfig struct {
	TimeoutMS            int     `yaml:"timeout_ms"`
	DefaultLimit         int     `yaml:"default_limit"`
	ScoreThreshold       float32 `yaml:"score_threshold"`
	OverfetchFactor      int     `yaml:"overfetch_factor"`
	FetchConcurrency     int     `yaml:"fetch_concurrency"`
	DegradedConcurrency  int     `yaml:"degraded_concurrency"`
	FetchTimeoutMS       int     `yaml:"fetch_timeout_ms"`
	ExistencePrecheck    bool    `yaml:"existence_precheck"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Qdrant.Port <= 0 {
		c.Qdrant.Port = 6334
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "agent_data"
	}
	if c.Qdrant.VectorDim <= 0 {
		c.Qdrant.VectorDim = 1536
	}
	if c.Firestore.Collection == "" {
		c.Firestore.Collection = "document_metadata"
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 7
	}
	if c.RateLimit.MinIntervalMS <= 0 {
		c.RateLimit.MinIntervalMS = 300
	}
	if c.RateLimit.MaxIntervalMS <= 0 {
		c.RateLimit.MaxIntervalMS = 2000
	}
	if c.Vectorize.EmbedTimeoutMS <= 0 {
		c.Vectorize.EmbedTimeoutMS = 200
	}
	if c.Vectorize.TaggingTimeoutMS <= 0 {
		c.Vectorize.TaggingTimeoutMS = 300
	}
	if c.Vectorize.DocTimeoutMS <= 0 {
		c.Vectorize.DocTimeoutMS = 500
	}
	if c.Vectorize.ChunkTimeoutMS <= 0 {
		c.Vectorize.ChunkTimeoutMS = 2000
	}
	if c.Vectorize.ChunkSize <= 0 {
		c.Vectorize.ChunkSize = 10
	}
	if c.Vectorize.BatchTargetMS <= 0 {
		c.Vectorize.BatchTargetMS = 5000
	}
	if c.Vectorize.MaxTags <= 0 {
		c.Vectorize.MaxTags = 5
	}
	if c.Vectorize.MaxBatchSize <= 0 {
		c.Vectorize.MaxBatchSize = 500
	}
	if c.Vectorize.PreviewLen <= 0 {
		c.Vectorize.PreviewLen = 200
	}
	if c.Search.TimeoutMS <= 0 {
		c.Search.TimeoutMS = 600
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.ScoreThreshold <= 0 {
		c.Search.ScoreThreshold = 0.5
	}
	if c.Search.OverfetchFactor <= 0 {
		c.Search.OverfetchFactor = 2
	}
	if c.Search.FetchConcurrency <= 0 {
		c.Search.FetchConcurrency = 8
	}
	if c.Search.DegradedConcurrency <= 0 {
		c.Search.DegradedConcurrency = 3
	}
	if c.Search.FetchTimeoutMS <= 0 {
		c.Search.FetchTimeoutMS = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant.host is required")
	}
	if c.Firestore.ProjectID == "" {
		return fmt.Errorf("firestore.project_id is required")
	}
	if c.Embedding.Enabled && c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required when embedding is enabled")
	}
	if c.RateLimit.MaxIntervalMS < c.RateLimit.MinIntervalMS {
		return fmt.Errorf(
			"rate_limit.max_interval_ms (%d) must be >= min_interval_ms (%d)",
			c.RateLimit.MaxIntervalMS, c.RateLimit.MinIntervalMS,
		)
	}
	return nil
}

// MinInterval returns the rate limiter floor as a duration.
func (c RateLimitConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// MaxInterval returns the rate limiter ceiling as a duration.
func (c RateLimitConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMS) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
