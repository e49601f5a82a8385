package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/cache"
	"github.com/agentdata-cloud/agentdata/internal/domain"
)

type mockKV struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	setKeys []string
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return data, nil
}

func (m *mockKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setKeys = append(m.setKeys, key)
	m.data[key] = value
	return nil
}

type mockEmbedder struct {
	calls  int
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

func TestEmbed_MissThenHit(t *testing.T) {
	kv := newMockKV()
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.25, -1.5, 3}}}
	e := New(inner, kv, "text-embedding-3-small", time.Hour, zap.NewNop())

	first, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	second, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected a single provider call, got %d", inner.calls)
	}
	if len(second.Embedding) != len(first.Embedding) {
		t.Fatalf("cached vector length mismatch: %d vs %d", len(second.Embedding), len(first.Embedding))
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Errorf("vector[%d]: got %v, want %v", i, second.Embedding[i], first.Embedding[i])
		}
	}
}

func TestEmbed_ModelIsPartOfKey(t *testing.T) {
	kv := newMockKV()
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}

	if _, err := New(inner, kv, "model-a", time.Hour, zap.NewNop()).Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := New(inner, kv, "model-b", time.Hour, zap.NewNop()).Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("expected both models to miss, got %d provider calls", inner.calls)
	}
	if len(kv.setKeys) != 2 || kv.setKeys[0] == kv.setKeys[1] {
		t.Errorf("expected distinct cache keys per model, got %v", kv.setKeys)
	}
}

func TestEmbed_CacheReadFailureDegradesToProvider(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("connection reset")
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	e := New(inner, kv, "m", time.Hour, zap.NewNop())

	result, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("cache failure must not surface: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Errorf("expected provider vector, got %v", result.Embedding)
	}
}

func TestEmbed_CacheWriteFailureDegrades(t *testing.T) {
	kv := newMockKV()
	kv.setErr = errors.New("readonly replica")
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	e := New(inner, kv, "m", time.Hour, zap.NewNop())

	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("cache write failure must not surface: %v", err)
	}
}

func TestEmbed_ProviderErrorPropagates(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	e := New(inner, newMockKV(), "m", time.Hour, zap.NewNop())

	if _, err := e.Embed(context.Background(), "hello"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEmbed_CorruptEntryFallsThrough(t *testing.T) {
	kv := newMockKV()
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	e := New(inner, kv, "m", time.Hour, zap.NewNop())

	kv.data[e.cacheKey("hello")] = []byte{1, 2, 3} // not a multiple of 4

	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected corrupt entry to miss, got %d provider calls", inner.calls)
	}
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0, -0.5, 1.25, 3.14159}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("vector[%d]: got %v, want %v", i, out[i], in[i])
		}
	}
}
