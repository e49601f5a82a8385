// Package health aggregates component availability for the health endpoint.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	vectors   Pinger
	metadata  Pinger
	embedding EmbeddingChecker
}

// New creates a Service. metadata and embedding can be nil.
func New(vectors, metadata Pinger, embedding EmbeddingChecker) *Service {
	return &Service{vectors: vectors, metadata: metadata, embedding: embedding}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.vectors.Ping(ctx); err != nil {
		checks["qdrant"] = CheckError
	} else {
		checks["qdrant"] = CheckOK
	}

	if s.metadata != nil {
		if err := s.metadata.Ping(ctx); err != nil {
			checks["firestore"] = CheckError
		} else {
			checks["firestore"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
