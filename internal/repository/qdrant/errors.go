package qdrant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// classifyStoreError maps gRPC failures onto domain sentinels so callers
// retry on error type, never on error text.
func classifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
	}

	switch st.Code() {
	case codes.Unavailable, codes.Aborted:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrStoreUnavailable)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrStoreTimeout)
	case codes.ResourceExhausted:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrRateLimited)
	case codes.NotFound:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrNotFound)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrUnauthenticated)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrInvalidDocument)
	default:
		return fmt.Errorf("%s: %s: %w", op, st.Message(), domain.ErrStoreUnavailable)
	}
}
