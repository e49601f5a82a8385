// Package ratelimit gates vector store calls behind a process-wide minimum
// interval, sized for the free-tier quota of the managed cluster.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults reflecting the managed cluster's free-tier quota.
const (
	DefaultMinInterval = 300 * time.Millisecond
	DefaultMaxInterval = 2 * time.Second

	// backoffFactor is the multiplicative interval increase applied when
	// the store reports a quota hit.
	backoffFactor = 1.5
)

// Limiter spaces consecutive operations at least one interval apart. The
// interval only grows (up to a cap) in response to rate-limit errors; it is
// never reduced for the lifetime of the limiter. Construct one per process
// and inject it; the zero value is not usable.
type Limiter struct {
	mu       sync.Mutex
	bucket   *rate.Limiter
	interval time.Duration
	max      time.Duration
	logger   *zap.Logger
}

// New creates a limiter with the given interval floor and ceiling.
// Non-positive values fall back to the defaults.
func New(minInterval, maxInterval time.Duration, logger *zap.Logger) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if maxInterval < minInterval {
		maxInterval = DefaultMaxInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		bucket:   rate.NewLimiter(rate.Every(minInterval), 1),
		interval: minInterval,
		max:      maxInterval,
		logger:   logger,
	}
}

// Acquire blocks until the current interval has elapsed since the previous
// acquire, or until ctx is done. It never fails for any other reason.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	bucket := l.bucket
	l.mu.Unlock()

	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// Backoff widens the interval multiplicatively after a reported quota hit,
// up to the configured ceiling. Safe to call concurrently with Acquire.
func (l *Limiter) Backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := time.Duration(float64(l.interval) * backoffFactor)
	if next > l.max {
		next = l.max
	}
	if next == l.interval {
		return
	}
	l.interval = next
	l.bucket.SetLimit(rate.Every(next))
	l.logger.Warn("rate limiter backing off", zap.Duration("interval", next))
}

// Interval returns the current spacing between operations.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
