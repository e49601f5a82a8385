// Package vectorize orchestrates the document vectorization pipeline:
// embed, upsert, optional auto-tagging, and opportunistic status mirroring.
package vectorize

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/background"
	"github.com/agentdata-cloud/agentdata/internal/domain"
	"github.com/agentdata-cloud/agentdata/internal/metrics"
)

// Budgets holds the latency budgets of the pipeline stages.
type Budgets struct {
	EmbedTimeout   time.Duration
	TaggingTimeout time.Duration
	DocTimeout     time.Duration
	ChunkTimeout   time.Duration
	ChunkSize      int
	BatchTarget    time.Duration
	MaxTags        int
	MaxBatchSize   int
	PreviewLen     int
}

// DefaultBudgets returns the production defaults.
func DefaultBudgets() Budgets {
	return Budgets{
		EmbedTimeout:   200 * time.Millisecond,
		TaggingTimeout: 300 * time.Millisecond,
		DocTimeout:     500 * time.Millisecond,
		ChunkTimeout:   2 * time.Second,
		ChunkSize:      10,
		BatchTarget:    5 * time.Second,
		MaxTags:        5,
		MaxBatchSize:   500,
		PreviewLen:     200,
	}
}

// Request is a single vectorization request.
type Request struct {
	DocID             string
	Content           string
	Metadata          map[string]any
	Tag               string
	UpdateFirestore   bool
	EnableAutoTagging bool
}

// Service runs the vectorization pipeline. Operations fold every failure
// into the result status instead of returning errors.
type Service struct {
	vectors      VectorStore
	metadata     MetadataStore
	embedder     domain.Embedder
	tagger       Tagger
	retrier      Retrier
	batchRetrier Retrier
	runner       *background.Runner
	budgets      Budgets
	model        string
	logger       *zap.Logger
}

// New creates a vectorize service. A nil embedder disables vectorization;
// requests then fail fast without touching the stores.
func New(vectors VectorStore, metadata MetadataStore, embedder domain.Embedder, retrier Retrier, runner *background.Runner, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		vectors:      vectors,
		metadata:     metadata,
		embedder:     embedder,
		retrier:      retrier,
		batchRetrier: retrier,
		runner:       runner,
		budgets:      DefaultBudgets(),
		model:        model,
		logger:       logger,
	}
}

// WithBatchRetrier sets a tighter retry policy for batch items, whose
// per-document deadlines cannot absorb the standard backoff.
func (s *Service) WithBatchRetrier(retrier Retrier) *Service {
	if retrier != nil {
		s.batchRetrier = retrier
	}
	return s
}

// WithTagger enables auto-tagging.
func (s *Service) WithTagger(tagger Tagger) *Service {
	s.tagger = tagger
	return s
}

// WithBudgets overrides the stage budgets.
func (s *Service) WithBudgets(b Budgets) *Service {
	s.budgets = b
	return s
}

// VectorizeDocument runs the full pipeline for one document.
func (s *Service) VectorizeDocument(ctx context.Context, req Request) *domain.VectorizeResult {
	start := time.Now()
	result := s.vectorize(ctx, req, true)
	result.Latency = time.Since(start).Seconds()
	metrics.VectorizeTotal.WithLabelValues(result.Status).Inc()
	metrics.VectorizeDuration.Observe(result.Latency)
	return result
}

// vectorize is the shared pipeline. Batch items (interactive=false) skip
// auto-tagging, retry on the tighter batch policy, and carry their own
// per-document deadline in ctx.
func (s *Service) vectorize(ctx context.Context, req Request, interactive bool) *domain.VectorizeResult {
	logger := s.logger.With(zap.String("doc_id", req.DocID))

	if s.embedder == nil {
		return s.failed(req, domain.ErrEmbeddingDisabled.Error())
	}

	doc := domain.Document{
		DocID:    req.DocID,
		Content:  req.Content,
		Metadata: req.Metadata,
		Tag:      req.Tag,
	}
	if err := doc.Validate(); err != nil {
		// Invalid input never reaches the stores.
		return s.failed(req, err.Error())
	}

	// Status writes for one document are chained: the terminal write waits
	// for the pending write to land, so pending can never become the record.
	var pendingDone <-chan struct{}
	if req.UpdateFirestore {
		pendingDone = s.writeStatus(ctx, nil, req.DocID, domain.VectorPending, req.Metadata, nil, "")
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.budgets.EmbedTimeout)
	embedded, err := s.embedder.Embed(embedCtx, req.Content)
	cancel()
	if err != nil {
		if req.UpdateFirestore {
			s.writeStatus(ctx, pendingDone, req.DocID, domain.VectorFailed, req.Metadata, nil, err.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("embedding timed out", zap.Duration("budget", s.budgets.EmbedTimeout))
			return s.timeout(req, "embedding timed out")
		}
		logger.Warn("embedding failed", zap.Error(err))
		return s.failed(req, err.Error())
	}

	enriched := s.enrichMetadata(req)

	// Tagging and the upsert run concurrently. Tagging has its own budget
	// and only ever contributes to the final status write; a slow or failed
	// tagger never blocks or fails the upsert.
	var autoTags []string
	tagDone := make(chan struct{})
	if interactive && req.EnableAutoTagging && s.tagger != nil {
		go func() {
			defer close(tagDone)
			tagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.budgets.TaggingTimeout)
			defer cancel()
			tagged, tagErr := s.tagger.EnhanceMetadata(tagCtx, req.DocID, req.Content, req.Metadata, s.budgets.MaxTags)
			if tagErr != nil {
				logger.Debug("auto-tagging skipped", zap.Error(tagErr))
				return
			}
			if tags, ok := tagged["auto_tags"].([]string); ok {
				autoTags = tags
			}
		}()
	} else {
		close(tagDone)
	}

	retrier := s.retrier
	if !interactive {
		retrier = s.batchRetrier
	}
	err = retrier.Do(ctx, "upsert vector", func(ctx context.Context) error {
		return s.vectors.UpsertVector(ctx, req.DocID, embedded.Embedding, enriched, req.Tag)
	})
	<-tagDone
	if err != nil {
		if req.UpdateFirestore {
			s.writeStatus(ctx, pendingDone, req.DocID, domain.VectorFailed, enriched, nil, err.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return s.timeout(req, "vector upsert timed out")
		}
		logger.Warn("vector upsert failed", zap.Error(err))
		return s.failed(req, err.Error())
	}

	if req.UpdateFirestore {
		s.writeStatus(ctx, pendingDone, req.DocID, domain.VectorCompleted, enriched, autoTags, "")
	}

	keys := make([]string, 0, len(enriched))
	for k := range enriched {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &domain.VectorizeResult{
		Status:             domain.StatusSuccess,
		DocID:              req.DocID,
		VectorID:           req.DocID,
		EmbeddingDimension: len(embedded.Embedding),
		MetadataKeys:       keys,
		FirestoreUpdated:   req.UpdateFirestore,
	}
}

// writeStatus mirrors status to the metadata store without blocking the
// pipeline. Failures are logged by the runner and otherwise ignored. The
// write starts after the `after` channel closes; the store is last-write-
// wins, so writes for the same document must land in pipeline order.
func (s *Service) writeStatus(ctx context.Context, after <-chan struct{}, docID string, status domain.VectorStatus, metadata map[string]any, autoTags []string, errMsg string) <-chan struct{} {
	if s.metadata == nil || s.runner == nil {
		return nil
	}
	record := &domain.MetadataRecord{
		DocID:        docID,
		VectorStatus: status,
		LastUpdated:  time.Now().UTC(),
		Metadata:     metadata,
		AutoTags:     autoTags,
		Error:        errMsg,
	}
	return s.runner.Go(ctx, "status write "+string(status), func(ctx context.Context) error {
		if after != nil {
			<-after
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return s.metadata.SaveMetadata(ctx, record)
	})
}

// enrichMetadata copies the request metadata and adds the pipeline fields.
func (s *Service) enrichMetadata(req Request) map[string]any {
	enriched := make(map[string]any, len(req.Metadata)+4)
	for k, v := range req.Metadata {
		enriched[k] = v
	}
	preview := req.Content
	if len(preview) > s.budgets.PreviewLen {
		preview = preview[:s.budgets.PreviewLen]
	}
	enriched["content_length"] = len(req.Content)
	enriched["content_preview"] = preview
	enriched["embedding_model"] = s.model
	enriched["vectorized_at"] = time.Now().UTC().Format(time.RFC3339)
	return enriched
}

func (s *Service) failed(req Request, msg string) *domain.VectorizeResult {
	return &domain.VectorizeResult{
		Status: domain.StatusFailed,
		DocID:  req.DocID,
		Error:  msg,
	}
}

func (s *Service) timeout(req Request, msg string) *domain.VectorizeResult {
	return &domain.VectorizeResult{
		Status: domain.StatusTimeout,
		DocID:  req.DocID,
		Error:  msg,
	}
}
