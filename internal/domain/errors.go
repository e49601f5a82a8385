package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDocument signals a document missing required fields.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrRateLimited signals a provider or store quota hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable signals a connection-level store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreTimeout signals a store call that exceeded its deadline.
	ErrStoreTimeout = errors.New("store timeout")
	// ErrUnauthenticated signals rejected credentials on an external call.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrEmbeddingDisabled signals that no embedding provider is configured.
	ErrEmbeddingDisabled = errors.New("embedding provider unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// IsTransient reports whether err is worth retrying: connection loss,
// deadline expiry, and quota hits. Store adapters translate their wire
// errors into these sentinels; nothing in the retry path inspects
// error text.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}
