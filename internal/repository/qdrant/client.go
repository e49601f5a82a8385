// Package qdrant implements the vector store on Qdrant's gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"slices"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// Config holds the vector store connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorDim  uint64
}

// Store is the Qdrant-backed vector store. Query embedding is delegated to
// the injected embedder so callers hand over raw query text.
type Store struct {
	api        *qdrant.Client
	embedder   domain.Embedder
	collection string
	vectorDim  uint64
	logger     *zap.Logger
}

// New connects to Qdrant and verifies the service is reachable.
func New(cfg Config, embedder domain.Embedder, logger *zap.Logger) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	s := &Store{
		api:        api,
		embedder:   embedder,
		collection: cfg.Collection,
		vectorDim:  cfg.VectorDim,
		logger:     logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Ping calls the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.api.HealthCheck(ctx); err != nil {
		return classifyStoreError("health check", err)
	}
	return nil
}

// EnsureCollection creates the collection on first run.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.api.ListCollections(ctx)
	if err != nil {
		return classifyStoreError("list collections", err)
	}
	if slices.Contains(collections, s.collection) {
		return nil
	}

	s.logger.Info("creating collection", zap.String("collection", s.collection))

	err = s.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorDim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return classifyStoreError("create collection", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.api.Close()
}
