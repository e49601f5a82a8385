package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

func TestRecordFromDoc_FullDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	data := map[string]any{
		fieldVectorStatus: "completed",
		fieldLastUpdated:  now,
		fieldMetadata:     map[string]any{"level_1_category": "infra", "pages": int64(3)},
		fieldAutoTags:     []any{"kubernetes", "oncall"},
		fieldVersion:      int64(4),
		fieldError:        "",
	}

	record := recordFromDoc("doc-001", data)

	if record.DocID != "doc-001" {
		t.Errorf("doc id: got %q", record.DocID)
	}
	if record.VectorStatus != domain.VectorCompleted {
		t.Errorf("status: got %q", record.VectorStatus)
	}
	if !record.LastUpdated.Equal(now) {
		t.Errorf("last_updated: got %v, want %v", record.LastUpdated, now)
	}
	if record.Metadata["level_1_category"] != "infra" {
		t.Errorf("metadata: got %v", record.Metadata)
	}
	if len(record.AutoTags) != 2 || record.AutoTags[0] != "kubernetes" {
		t.Errorf("auto tags: got %v", record.AutoTags)
	}
	if record.Version != 4 {
		t.Errorf("version: got %d", record.Version)
	}
}

func TestRecordFromDoc_PartialDocument(t *testing.T) {
	record := recordFromDoc("doc-002", map[string]any{
		fieldVectorStatus: "pending",
	})

	if record.VectorStatus != domain.VectorPending {
		t.Errorf("status: got %q", record.VectorStatus)
	}
	if record.Metadata == nil {
		t.Error("metadata must default to an empty map")
	}
	if record.AutoTags != nil {
		t.Errorf("auto tags: got %v", record.AutoTags)
	}
	if record.Version != 0 {
		t.Errorf("version: got %d", record.Version)
	}
}

func TestRecordFromDoc_IgnoresBadlyTypedFields(t *testing.T) {
	record := recordFromDoc("doc-003", map[string]any{
		fieldVectorStatus: 42,
		fieldAutoTags:     []any{"ok", int64(7)},
		fieldVersion:      "not-a-number",
	})

	if record.VectorStatus != "" {
		t.Errorf("status: got %q", record.VectorStatus)
	}
	if len(record.AutoTags) != 1 || record.AutoTags[0] != "ok" {
		t.Errorf("auto tags: got %v", record.AutoTags)
	}
	if record.Version != 0 {
		t.Errorf("version: got %d", record.Version)
	}
}

func TestDocFromRecord_RoundTrip(t *testing.T) {
	now := time.Now().UTC()
	in := &domain.MetadataRecord{
		DocID:        "doc-004",
		VectorStatus: domain.VectorFailed,
		LastUpdated:  now,
		Metadata:     map[string]any{"source": "wiki"},
		AutoTags:     []string{"billing"},
		Error:        "embedding timed out",
	}

	doc := docFromRecord(in)

	if doc[fieldVectorStatus] != "failed" {
		t.Errorf("status: got %v", doc[fieldVectorStatus])
	}
	if doc[fieldError] != "embedding timed out" {
		t.Errorf("error: got %v", doc[fieldError])
	}
	if _, present := doc[fieldVersion]; present {
		t.Error("version is owned by the store, dto must not set it")
	}
}

func TestClassifyStoreError_Codes(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{status.Error(codes.Unavailable, "down"), domain.ErrStoreUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), domain.ErrStoreTimeout},
		{status.Error(codes.ResourceExhausted, "quota"), domain.ErrRateLimited},
		{status.Error(codes.PermissionDenied, "iam"), domain.ErrUnauthenticated},
		{context.DeadlineExceeded, domain.ErrStoreTimeout},
	}
	for _, tt := range tests {
		if got := classifyStoreError("op", tt.in); !errors.Is(got, tt.want) {
			t.Errorf("classify(%v): got %v, want wrapped %v", tt.in, got, tt.want)
		}
	}
}
