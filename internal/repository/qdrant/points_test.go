package qdrant

import (
	"context"
	"errors"
	"testing"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

func TestPointID_DeterministicAndDistinct(t *testing.T) {
	a1 := pointID("doc-001")
	a2 := pointID("doc-001")
	b := pointID("doc-002")

	if a1 != a2 {
		t.Errorf("same doc_id must map to the same point id: %s vs %s", a1, a2)
	}
	if a1 == b {
		t.Error("distinct doc_ids must not collide")
	}
}

func TestValueToAny_Kinds(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"title":   {Kind: &qdrant.Value_StringValue{StringValue: "runbook"}},
		"pages":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: 12}},
		"score":   {Kind: &qdrant.Value_DoubleValue{DoubleValue: 0.75}},
		"public":  {Kind: &qdrant.Value_BoolValue{BoolValue: true}},
		"missing": {Kind: &qdrant.Value_NullValue{}},
		"tags": {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{
			Values: []*qdrant.Value{
				{Kind: &qdrant.Value_StringValue{StringValue: "infra"}},
				{Kind: &qdrant.Value_StringValue{StringValue: "oncall"}},
			},
		}}},
		"nested": {Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{
			Fields: map[string]*qdrant.Value{
				"owner": {Kind: &qdrant.Value_StringValue{StringValue: "platform"}},
			},
		}}},
	}

	out := payloadToMap(payload)

	if out["title"] != "runbook" {
		t.Errorf("title: got %v", out["title"])
	}
	if out["pages"] != int64(12) {
		t.Errorf("pages: got %v (%T)", out["pages"], out["pages"])
	}
	if out["score"] != 0.75 {
		t.Errorf("score: got %v", out["score"])
	}
	if out["public"] != true {
		t.Errorf("public: got %v", out["public"])
	}
	if out["missing"] != nil {
		t.Errorf("missing: got %v", out["missing"])
	}
	tags, ok := out["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "infra" {
		t.Errorf("tags: got %v", out["tags"])
	}
	nested, ok := out["nested"].(map[string]any)
	if !ok || nested["owner"] != "platform" {
		t.Errorf("nested: got %v", out["nested"])
	}
}

func TestToHits_DocIDFromPayloadThenPointID(t *testing.T) {
	s := &Store{}

	points := []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewID("11111111-1111-1111-1111-111111111111"),
			Score: 0.9,
			Payload: map[string]*qdrant.Value{
				"doc_id": {Kind: &qdrant.Value_StringValue{StringValue: "doc-001"}},
			},
		},
		{
			Id:      qdrant.NewID("22222222-2222-2222-2222-222222222222"),
			Score:   0.8,
			Payload: map[string]*qdrant.Value{},
		},
	}

	hits, err := s.toHits(points)
	if err != nil {
		t.Fatalf("toHits: %v", err)
	}
	if hits[0].DocID != "doc-001" {
		t.Errorf("expected payload doc_id, got %q", hits[0].DocID)
	}
	if hits[1].DocID != "22222222-2222-2222-2222-222222222222" {
		t.Errorf("expected point id fallback, got %q", hits[1].DocID)
	}
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), domain.ErrStoreUnavailable},
		{"deadline code", status.Error(codes.DeadlineExceeded, "slow"), domain.ErrStoreTimeout},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "quota"), domain.ErrRateLimited},
		{"not found", status.Error(codes.NotFound, "no collection"), domain.ErrNotFound},
		{"unauthenticated", status.Error(codes.Unauthenticated, "bad key"), domain.ErrUnauthenticated},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad vector"), domain.ErrInvalidDocument},
		{"context deadline", context.DeadlineExceeded, domain.ErrStoreTimeout},
		{"plain error", errors.New("dial tcp: refused"), domain.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyStoreError("upsert", tt.in)
			if !errors.Is(got, tt.want) {
				t.Errorf("got %v, want wrapped %v", got, tt.want)
			}
		})
	}
}

func TestClassifyStoreError_CanceledPassesThrough(t *testing.T) {
	got := classifyStoreError("query", context.Canceled)
	if !errors.Is(got, context.Canceled) {
		t.Fatalf("got %v", got)
	}
	if domain.IsTransient(got) {
		t.Error("caller cancellation must not count as transient")
	}
}
