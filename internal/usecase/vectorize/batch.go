package vectorize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// batchTargetSize is the batch size the latency target is defined for.
const batchTargetSize = 100

// BatchVectorizeDocuments vectorizes documents in fixed-size chunks.
// Chunks run sequentially, documents within a chunk concurrently. Each
// document gets its own deadline and each chunk a collective one; a stuck
// chunk is sealed and its unfinished documents reported as timed out.
// Auto-tagging is disabled for batch items.
func (s *Service) BatchVectorizeDocuments(ctx context.Context, reqs []Request) *domain.BatchOutcome {
	start := time.Now()

	outcome := &domain.BatchOutcome{
		Status:         domain.StatusCompleted,
		TotalDocuments: len(reqs),
		Results:        make([]domain.VectorizeResult, 0, len(reqs)),
	}
	if len(reqs) == 0 {
		outcome.PerformanceTargetMet = true
		return outcome
	}
	if len(reqs) > s.budgets.MaxBatchSize {
		outcome.Status = domain.StatusFailed
		outcome.Failed = len(reqs)
		for _, req := range reqs {
			outcome.Results = append(outcome.Results, domain.VectorizeResult{
				Status: domain.StatusFailed,
				DocID:  req.DocID,
				Error:  fmt.Sprintf("batch exceeds the %d document limit", s.budgets.MaxBatchSize),
			})
		}
		return outcome
	}

	chunkSize := s.budgets.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}

	for begin := 0; begin < len(reqs); begin += chunkSize {
		end := min(begin+chunkSize, len(reqs))
		outcome.Results = append(outcome.Results, s.runChunk(ctx, reqs[begin:end])...)
	}

	for _, r := range outcome.Results {
		if r.Status == domain.StatusSuccess {
			outcome.Successful++
		} else {
			outcome.Failed++
		}
	}

	elapsed := time.Since(start)
	outcome.Latency = elapsed.Seconds()
	outcome.PerformanceTargetMet = len(reqs) <= batchTargetSize && elapsed < s.budgets.BatchTarget

	s.logger.Info("batch vectorization finished",
		zap.Int("total", outcome.TotalDocuments),
		zap.Int("successful", outcome.Successful),
		zap.Int("failed", outcome.Failed),
		zap.Duration("elapsed", elapsed),
	)
	return outcome
}

// runChunk vectorizes one chunk concurrently. Results are collected under
// a mutex and the slot table is sealed when the chunk deadline fires, so a
// straggler finishing late cannot corrupt an already returned chunk.
func (s *Service) runChunk(ctx context.Context, reqs []Request) []domain.VectorizeResult {
	chunkCtx, cancel := context.WithTimeout(ctx, s.budgets.ChunkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		sealed  bool
		results = make([]*domain.VectorizeResult, len(reqs))
		done    = make(chan struct{})
		wg      sync.WaitGroup
	)

	for i, req := range reqs {
		wg.Add(1)
		go func(slot int, req Request) {
			defer wg.Done()
			docCtx, cancel := context.WithTimeout(chunkCtx, s.budgets.DocTimeout)
			defer cancel()

			result := s.vectorize(docCtx, req, false)

			mu.Lock()
			if !sealed {
				results[slot] = result
			}
			mu.Unlock()
		}(i, req)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-chunkCtx.Done():
	}

	mu.Lock()
	sealed = true
	out := make([]domain.VectorizeResult, len(reqs))
	for i, r := range results {
		if r != nil {
			out[i] = *r
			continue
		}
		out[i] = domain.VectorizeResult{
			Status: domain.StatusTimeout,
			DocID:  reqs[i].DocID,
			Error:  "chunk deadline exceeded",
		}
	}
	mu.Unlock()
	return out
}
