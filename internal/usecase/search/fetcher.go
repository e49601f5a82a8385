package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// Fetcher resolves metadata records for a set of candidates. It degrades,
// never fails: documents whose metadata cannot be fetched are simply
// absent from the returned map.
type Fetcher struct {
	store       MetadataGetter
	concurrency int
	degraded    int
	timeout     time.Duration
	precheck    bool
	logger      *zap.Logger
}

// NewFetcher creates a metadata fetcher with the production defaults:
// 8-way fan-out under a 300ms window, degrading to a 3-way retry pass.
func NewFetcher(store MetadataGetter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		store:       store,
		concurrency: 8,
		degraded:    3,
		timeout:     300 * time.Millisecond,
		precheck:    true,
		logger:      logger,
	}
}

// WithLimits overrides fan-out and window settings.
func (f *Fetcher) WithLimits(concurrency, degraded int, timeout time.Duration) *Fetcher {
	if concurrency > 0 {
		f.concurrency = concurrency
	}
	if degraded > 0 {
		f.degraded = degraded
	}
	if timeout > 0 {
		f.timeout = timeout
	}
	return f
}

// WithPrecheck toggles the single-round-trip existence check.
func (f *Fetcher) WithPrecheck(enabled bool) *Fetcher {
	f.precheck = enabled
	return f
}

// BatchGetMetadata fetches records for docIDs. The first pass fans out at
// full concurrency inside the fetch window; if the window expires, the
// still-missing IDs get one slower retry pass. Individual failures are
// logged and dropped.
func (f *Fetcher) BatchGetMetadata(ctx context.Context, docIDs []string) map[string]*domain.MetadataRecord {
	out := make(map[string]*domain.MetadataRecord, len(docIDs))
	if len(docIDs) == 0 {
		return out
	}

	targets := docIDs
	if f.precheck {
		if checker, ok := f.store.(ExistenceChecker); ok {
			exists, err := checker.BatchCheckExists(ctx, docIDs)
			if err != nil {
				f.logger.Warn("existence precheck failed, fetching all candidates", zap.Error(err))
			} else {
				targets = targets[:0:0]
				for _, id := range docIDs {
					if exists[id] {
						targets = append(targets, id)
					}
				}
			}
		}
	}
	if len(targets) == 0 {
		return out
	}

	var mu sync.Mutex
	fetched := f.fetchPass(ctx, targets, f.concurrency, &mu, out)

	if fetched < len(targets) && ctx.Err() == nil {
		missing := make([]string, 0, len(targets)-fetched)
		mu.Lock()
		for _, id := range targets {
			if _, ok := out[id]; !ok {
				missing = append(missing, id)
			}
		}
		mu.Unlock()
		if len(missing) > 0 {
			f.logger.Warn("metadata fetch degraded, retrying missing candidates",
				zap.Int("missing", len(missing)),
			)
			f.fetchPass(ctx, missing, f.degraded, &mu, out)
		}
	}

	return out
}

func (f *Fetcher) fetchPass(ctx context.Context, docIDs []string, concurrency int, mu *sync.Mutex, out map[string]*domain.MetadataRecord) int {
	passCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var fetched int
	g, gctx := errgroup.WithContext(passCtx)
	g.SetLimit(concurrency)

	for _, docID := range docIDs {
		g.Go(func() error {
			record, err := f.store.GetMetadata(gctx, docID)
			if err != nil {
				f.logger.Debug("metadata fetch miss", zap.String("doc_id", docID), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[docID] = record
			fetched++
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // workers never return errors
	return fetched
}
