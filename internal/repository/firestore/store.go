// Package firestore mirrors document metadata and vectorization status in
// Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// Config holds the Firestore connection settings.
type Config struct {
	ProjectID  string
	Collection string
}

// Store is the Firestore-backed metadata store.
type Store struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

// New creates a metadata store. Credentials come from the ambient service
// account (ADC).
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reads a sentinel document to verify connectivity. NotFound is a
// healthy answer.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(s.collection).Doc("__ping__").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return classifyStoreError("ping", err)
	}
	return nil
}

// GetMetadata fetches a single metadata record. A missing document returns
// domain.ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, docID string) (*domain.MetadataRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("metadata %s: %w", docID, domain.ErrNotFound)
		}
		return nil, classifyStoreError("get metadata", err)
	}

	record := recordFromDoc(docID, snap.Data())
	return &record, nil
}

// SaveMetadata writes the full record with last-write-wins semantics and a
// server-side version increment. Concurrent writers are not coordinated;
// the newest write is the record of truth.
func (s *Store) SaveMetadata(ctx context.Context, record *domain.MetadataRecord) error {
	doc := docFromRecord(record)
	doc["version"] = firestore.Increment(1)

	_, err := s.client.Collection(s.collection).Doc(record.DocID).Set(ctx, doc, firestore.MergeAll)
	if err != nil {
		return classifyStoreError("save metadata", err)
	}
	return nil
}

// BatchCheckExists resolves which of the given doc IDs have a metadata
// record, in a single round trip.
func (s *Store) BatchCheckExists(ctx context.Context, docIDs []string) (map[string]bool, error) {
	if len(docIDs) == 0 {
		return map[string]bool{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(docIDs))
	for _, id := range docIDs {
		refs = append(refs, s.client.Collection(s.collection).Doc(id))
	}

	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, classifyStoreError("batch check exists", err)
	}

	out := make(map[string]bool, len(docIDs))
	for i, snap := range snaps {
		out[docIDs[i]] = snap.Exists()
	}
	return out, nil
}

func classifyStoreError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.Aborted:
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreTimeout)
	case codes.ResourceExhausted:
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrRateLimited)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrUnauthenticated)
	default:
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
	}
}
