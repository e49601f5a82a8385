// Package background supervises fire-and-forget tasks such as the final
// status writes that must not block the response path.
package background

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Runner spawns supervised background tasks. Task failures are logged,
// never propagated. Drain waits for outstanding tasks during shutdown so
// opportunistic writes are not lost on a clean exit.
type Runner struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a runner.
func New(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Go runs fn in a new goroutine. The task inherits the values of ctx but
// not its cancellation: a finished HTTP request must not cancel the status
// write it spawned. The returned channel closes when the task finishes,
// letting callers sequence dependent tasks.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) <-chan struct{} {
	taskCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		if err := fn(taskCtx); err != nil {
			r.logger.Warn("background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}()
	return done
}

// Drain blocks until all outstanding tasks finish or ctx expires.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background drain: %w", ctx.Err())
	}
}
