// Package embcache caches embedding vectors in Redis so repeated
// vectorization of identical content skips the provider round trip.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/cache"
	"github.com/agentdata-cloud/agentdata/internal/domain"
	"github.com/agentdata-cloud/agentdata/internal/metrics"
)

const keyPrefix = "agentdata:emb_cache:"

// KV is the cache store contract.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Embedder decorates a domain.Embedder with a read-through cache. Cache
// failures degrade to the inner embedder and are never surfaced.
type Embedder struct {
	inner  domain.Embedder
	kv     KV
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a caching embedder. The model name is part of the cache key
// so a model change never serves stale vectors.
func New(inner domain.Embedder, kv KV, model string, ttl time.Duration, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		inner:  inner,
		kv:     kv,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

// Embed returns a cached vector when present, otherwise delegates to the
// inner embedder and stores the result.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.cacheKey(text)

	if data, err := e.kv.Get(ctx, key); err == nil {
		vector, decErr := decodeVector(data)
		if decErr == nil {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return domain.EmbeddingResult{Embedding: vector}, nil
		}
		e.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(decErr))
	} else if !errors.Is(err, cache.ErrKeyNotFound) {
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	if err := e.kv.Set(ctx, key, encodeVector(result.Embedding), e.ttl); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return result, nil
}

func (e *Embedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// encodeVector packs float32 values little-endian.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector payload of %d bytes", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
