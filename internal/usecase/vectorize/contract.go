package vectorize

import (
	"context"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// VectorStore is the vector database contract.
type VectorStore interface {
	UpsertVector(ctx context.Context, docID string, vector []float32, payload map[string]any, tag string) error
}

// MetadataStore mirrors vectorization status and metadata.
type MetadataStore interface {
	SaveMetadata(ctx context.Context, record *domain.MetadataRecord) error
}

// Tagger derives topic tags from document content. Best-effort: failures
// are dropped, never surfaced.
type Tagger interface {
	EnhanceMetadata(ctx context.Context, docID, content string, metadata map[string]any, maxTags int) (map[string]any, error)
}

// Retrier wraps a store call with the retry budget.
type Retrier interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}
