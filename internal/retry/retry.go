// Package retry wraps single vector store calls with bounded retries for
// transient failures. Classification is by error type, never by error text.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/domain"
	"github.com/agentdata-cloud/agentdata/internal/metrics"
)

// Gate is the rate limiter contract consumed before every attempt.
type Gate interface {
	Acquire(ctx context.Context) error
	Backoff()
}

// Policy retries an operation on transient errors with exponential backoff.
type Policy struct {
	maxAttempts int
	initial     time.Duration
	max         time.Duration
	gate        Gate
	logger      *zap.Logger
}

// New creates the standard policy: 3 attempts, backoff 1s doubling to 10s.
func New(gate Gate, logger *zap.Logger) *Policy {
	return custom(3, time.Second, 10*time.Second, gate, logger)
}

// NewFast creates the hot-path policy used by per-document upserts:
// 2 attempts, backoff 100ms doubling to 1s.
func NewFast(gate Gate, logger *zap.Logger) *Policy {
	return custom(2, 100*time.Millisecond, time.Second, gate, logger)
}

func custom(attempts int, initial, max time.Duration, gate Gate, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		maxAttempts: attempts,
		initial:     initial,
		max:         max,
		gate:        gate,
		logger:      logger,
	}
}

// Do runs fn, retrying transient failures up to the attempt budget. The
// gate is acquired before every attempt, including the first. Permanent
// errors propagate immediately; after the budget is exhausted the last
// error propagates.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := p.initial
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if p.gate != nil {
			if err := p.gate.Acquire(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !domain.IsTransient(err) {
			return err
		}
		if errors.Is(err, domain.ErrRateLimited) && p.gate != nil {
			p.gate.Backoff()
		}
		if attempt == p.maxAttempts {
			break
		}

		metrics.StoreRetriesTotal.WithLabelValues(op).Inc()
		p.logger.Warn("retrying store operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s canceled during backoff: %w", op, ctx.Err())
		case <-timer.C:
		}

		backoff *= 2
		if backoff > p.max {
			backoff = p.max
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, p.maxAttempts, lastErr)
}
