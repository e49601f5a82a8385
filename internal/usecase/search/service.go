// Package search implements hybrid RAG retrieval: vector similarity over
// the vector store refined by metadata filters from the metadata store.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/domain"
	"github.com/agentdata-cloud/agentdata/internal/metrics"
)

const (
	defaultLimit          = 10
	defaultScoreThreshold = 0.5
	overfetchFactor       = 2
)

// Query is one search request. Text drives similarity; the remaining
// fields refine the candidate set after retrieval.
type Query struct {
	Text            string
	MetadataFilters map[string]any
	Tags            []string
	PathQuery       string
	Limit           int
	ScoreThreshold  float32
	QdrantTag       string
}

// Service runs RAG searches. RAGSearch folds every failure into the
// outcome status and never panics out to the transport.
type Service struct {
	searcher  VectorSearcher
	fetcher   *Fetcher
	limit     int
	threshold float32
	overfetch int
	logger    *zap.Logger
}

// New creates a search service.
func New(searcher VectorSearcher, fetcher *Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		searcher:  searcher,
		fetcher:   fetcher,
		limit:     defaultLimit,
		threshold: defaultScoreThreshold,
		overfetch: overfetchFactor,
		logger:    logger,
	}
}

// WithDefaults overrides the page size, score threshold, and over-fetch
// factor applied when a query leaves them unset.
func (s *Service) WithDefaults(limit int, threshold float32, overfetch int) *Service {
	if limit > 0 {
		s.limit = limit
	}
	if threshold > 0 {
		s.threshold = threshold
	}
	if overfetch > 0 {
		s.overfetch = overfetch
	}
	return s
}

// RAGSearch retrieves similarity candidates, enriches them with metadata,
// applies the filters, and returns the top results by score.
func (s *Service) RAGSearch(ctx context.Context, q Query) (outcome *domain.SearchOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search panicked", zap.Any("panic", r))
			outcome = s.failed(q, "internal error")
		}
		outcome.Latency = time.Since(start).Seconds()
		metrics.SearchTotal.WithLabelValues(outcome.Status).Inc()
		metrics.SearchDuration.Observe(outcome.Latency)
	}()

	limit := q.Limit
	if limit <= 0 {
		limit = s.limit
	}
	threshold := q.ScoreThreshold
	if threshold <= 0 {
		threshold = s.threshold
	}

	// Over-fetch so post-retrieval filtering still fills the page.
	hits, err := s.searcher.SemanticSearch(ctx, q.Text, limit*s.overfetch, q.QdrantTag, threshold)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return s.timeoutOutcome(q)
		}
		s.logger.Warn("semantic search failed", zap.Error(err))
		return s.failed(q, err.Error())
	}
	if len(hits) == 0 {
		return &domain.SearchOutcome{
			Status:  domain.StatusSuccess,
			Query:   q.Text,
			Results: []domain.SearchResult{},
		}
	}

	docIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		docIDs = append(docIDs, h.DocID)
	}
	records := s.fetcher.BatchGetMetadata(ctx, docIDs)

	filtered := make([]domain.VectorHit, 0, len(hits))
	for _, hit := range hits {
		if s.matches(records[hit.DocID], q) {
			filtered = append(filtered, hit)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	results := make([]domain.SearchResult, 0, len(filtered))
	for _, hit := range filtered {
		results = append(results, buildResult(hit, records[hit.DocID]))
	}

	return &domain.SearchOutcome{
		Status:  domain.StatusSuccess,
		Query:   q.Text,
		Results: results,
		Count:   len(results),
	}
}

// matches applies the refinement filters in order of selectivity:
// metadata equality, then tag membership, then hierarchy path substring.
// Candidates without a metadata record pass only when no filter needs one.
func (s *Service) matches(record *domain.MetadataRecord, q Query) bool {
	needsRecord := len(q.MetadataFilters) > 0 || len(q.Tags) > 0 || q.PathQuery != ""
	if record == nil {
		return !needsRecord
	}

	for key, want := range q.MetadataFilters {
		got, ok := record.Metadata[key]
		if !ok || !equalValues(got, want) {
			return false
		}
	}

	if len(q.Tags) > 0 {
		tagSet := make(map[string]struct{}, len(record.AutoTags))
		for _, tag := range record.AutoTags {
			tagSet[strings.ToLower(tag)] = struct{}{}
		}
		found := false
		for _, want := range q.Tags {
			if _, ok := tagSet[strings.ToLower(want)]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if q.PathQuery != "" {
		path := strings.ToLower(record.HierarchyPath())
		if !strings.Contains(path, strings.ToLower(q.PathQuery)) {
			return false
		}
	}

	return true
}

// equalValues compares a filter value against a stored one. Numbers are
// compared by value: JSON decoding yields float64 while the stores hand
// back int64, and a width mismatch must not hide an equal filter.
func equalValues(got, want any) bool {
	gf, gok := toFloat64(got)
	wf, wok := toFloat64(want)
	if gok && wok {
		return gf == wf
	}
	if gok != wok {
		return false
	}
	return got == want
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func buildResult(hit domain.VectorHit, record *domain.MetadataRecord) domain.SearchResult {
	result := domain.SearchResult{
		DocID: hit.DocID,
		Score: hit.Score,
	}
	if preview, ok := hit.Payload["content_preview"].(string); ok {
		result.ContentPreview = preview
	}
	if record == nil {
		return result
	}

	result.Metadata = record.Metadata
	result.HierarchyPath = record.HierarchyPath()
	result.AutoTags = record.AutoTags
	result.Version = record.Version
	if !record.LastUpdated.IsZero() {
		result.LastUpdated = record.LastUpdated.UTC().Format(time.RFC3339)
	}
	if result.ContentPreview == "" {
		if preview, ok := record.Metadata["content_preview"].(string); ok {
			result.ContentPreview = preview
		}
	}
	return result
}

func (s *Service) failed(q Query, msg string) *domain.SearchOutcome {
	return &domain.SearchOutcome{
		Status:  domain.StatusFailed,
		Query:   q.Text,
		Results: []domain.SearchResult{},
		Error:   msg,
	}
}

func (s *Service) timeoutOutcome(q Query) *domain.SearchOutcome {
	return &domain.SearchOutcome{
		Status:  domain.StatusTimeout,
		Query:   q.Text,
		Results: []domain.SearchResult{},
		Error:   "search deadline exceeded",
	}
}
