package search

import (
	"context"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// VectorSearcher runs similarity queries over stored vectors.
type VectorSearcher interface {
	SemanticSearch(ctx context.Context, queryText string, limit int, tag string, scoreThreshold float32) ([]domain.VectorHit, error)
}

// MetadataGetter reads single metadata records.
type MetadataGetter interface {
	GetMetadata(ctx context.Context, docID string) (*domain.MetadataRecord, error)
}

// ExistenceChecker is optionally implemented by the metadata store to
// resolve which doc IDs exist in one round trip before fanning out.
type ExistenceChecker interface {
	BatchCheckExists(ctx context.Context, docIDs []string) (map[string]bool, error)
}
