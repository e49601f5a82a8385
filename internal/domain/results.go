package domain

// Outcome statuses of the public operations. The orchestrators never
// return Go errors to the transport: every failure mode is folded into a
// result with one of these statuses.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusCompleted = "completed"
)

// VectorizeResult is the outcome of vectorizing a single document.
type VectorizeResult struct {
	Status             string   `json:"status"`
	DocID              string   `json:"doc_id"`
	VectorID           string   `json:"vector_id,omitempty"`
	EmbeddingDimension int      `json:"embedding_dimension,omitempty"`
	MetadataKeys       []string `json:"metadata_keys,omitempty"`
	FirestoreUpdated   bool     `json:"firestore_updated"`
	Error              string   `json:"error,omitempty"`
	Latency            float64  `json:"latency,omitempty"`
}

// BatchOutcome aggregates per-document results of a batch vectorization.
type BatchOutcome struct {
	Status               string            `json:"status"`
	TotalDocuments       int               `json:"total_documents"`
	Successful           int               `json:"successful"`
	Failed               int               `json:"failed"`
	Results              []VectorizeResult `json:"results"`
	Latency              float64           `json:"latency"`
	PerformanceTargetMet bool              `json:"performance_target_met"`
}

// SearchResult is one ranked, metadata-enriched hit. Ephemeral: built per
// query, never persisted.
type SearchResult struct {
	DocID          string         `json:"doc_id"`
	Score          float32        `json:"qdrant_score"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	HierarchyPath  string         `json:"hierarchy_path,omitempty"`
	AutoTags       []string       `json:"auto_tags,omitempty"`
	ContentPreview string         `json:"content_preview,omitempty"`
	LastUpdated    string         `json:"last_updated,omitempty"`
	Version        int64          `json:"version,omitempty"`
}

// SearchOutcome is the caller-facing result of a RAG search.
type SearchOutcome struct {
	Status  string         `json:"status"`
	Query   string         `json:"query,omitempty"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
	Error   string         `json:"error,omitempty"`
	Latency float64        `json:"latency,omitempty"`
}
