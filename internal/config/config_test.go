package config

import (
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Qdrant:    QdrantConfig{Host: "localhost"},
		Firestore: FirestoreConfig{ProjectID: "test-project"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingQdrantHost(t *testing.T) {
	cfg := validConfig()
	cfg.Qdrant.Host = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing qdrant host")
	}
}

func TestValidate_MissingFirestoreProject(t *testing.T) {
	cfg := validConfig()
	cfg.Firestore.ProjectID = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing firestore project id")
	}
}

func TestValidate_EmbeddingEnabledWithoutModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Enabled = true
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled embedding without model")
	}
}

func TestValidate_RateLimitBounds(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.MinIntervalMS = 500
	cfg.RateLimit.MaxIntervalMS = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max interval below min interval")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.RateLimit.MinIntervalMS != 300 {
		t.Errorf("expected rate_limit.min_interval_ms=300, got %d", cfg.RateLimit.MinIntervalMS)
	}
	if cfg.RateLimit.MaxIntervalMS != 2000 {
		t.Errorf("expected rate_limit.max_interval_ms=2000, got %d", cfg.RateLimit.MaxIntervalMS)
	}
	if cfg.Vectorize.ChunkSize != 10 {
		t.Errorf("expected vectorize.chunk_size=10, got %d", cfg.Vectorize.ChunkSize)
	}
	if cfg.Vectorize.DocTimeoutMS != 500 {
		t.Errorf("expected vectorize.doc_timeout_ms=500, got %d", cfg.Vectorize.DocTimeoutMS)
	}
	if cfg.Vectorize.ChunkTimeoutMS != 2000 {
		t.Errorf("expected vectorize.chunk_timeout_ms=2000, got %d", cfg.Vectorize.ChunkTimeoutMS)
	}
	if cfg.Search.TimeoutMS != 600 {
		t.Errorf("expected search.timeout_ms=600, got %d", cfg.Search.TimeoutMS)
	}
	if cfg.Search.FetchConcurrency != 8 {
		t.Errorf("expected search.fetch_concurrency=8, got %d", cfg.Search.FetchConcurrency)
	}
	if cfg.Search.ScoreThreshold != 0.5 {
		t.Errorf("expected search.score_threshold=0.5, got %f", cfg.Search.ScoreThreshold)
	}
	if cfg.Qdrant.Port != 6334 {
		t.Errorf("expected qdrant.port=6334, got %d", cfg.Qdrant.Port)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("AGENTDATA_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("key: ${AGENTDATA_TEST_KEY}")))
	if got != "key: secret" {
		t.Errorf("expected expansion to %q, got %q", "key: secret", got)
	}

	got = string(expandEnvVars([]byte("host: ${AGENTDATA_TEST_UNSET:-localhost}")))
	if got != "host: localhost" {
		t.Errorf("expected default expansion to %q, got %q", "host: localhost", got)
	}
}
