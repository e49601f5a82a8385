package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a caller-supplied unit of content to vectorize. DocID is the
// idempotency key: resubmitting the same id overwrites the stored vector.
type Document struct {
	DocID    string         `json:"doc_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Tag      string         `json:"tag,omitempty"`
}

// Validate checks the fields required before any I/O is attempted.
func (d Document) Validate() error {
	if d.DocID == "" {
		return fmt.Errorf("doc_id is required: %w", ErrInvalidDocument)
	}
	if d.Content == "" {
		return fmt.Errorf("content is required: %w", ErrInvalidDocument)
	}
	return nil
}

// VectorStatus is the lifecycle state of a document's vectorization attempt.
type VectorStatus string

// Vectorization lifecycle states. Within one attempt the sequence of writes
// is a subsequence of (pending, completed|failed).
const (
	VectorPending   VectorStatus = "pending"
	VectorCompleted VectorStatus = "completed"
	VectorFailed    VectorStatus = "failed"
)

// MetadataRecord mirrors a document's vectorization state in the metadata
// store. At most one record exists per doc id; writes are last-write-wins.
type MetadataRecord struct {
	DocID        string
	VectorStatus VectorStatus
	LastUpdated  time.Time
	Metadata     map[string]any
	AutoTags     []string
	Version      int64
	Error        string
}

// HierarchyPath derives the display path "level_1 > level_2" from category
// metadata. Used for case-insensitive substring filtering in search.
func (r *MetadataRecord) HierarchyPath() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, key := range []string{"level_1_category", "level_2_category"} {
		if v, ok := r.Metadata[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " > ")
}

// VectorHit is one candidate returned by the vector store: a stored point
// with its similarity score and payload.
type VectorHit struct {
	DocID   string
	Score   float32
	Payload map[string]any
}
