package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

func TestVectorize_SendsAuthAndDecodesResult(t *testing.T) {
	var gotAuth, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(domain.VectorizeResult{
			Status: domain.StatusSuccess,
			DocID:  "doc-001",
		})
	}))
	defer ts.Close()

	c, err := New(ts.URL, WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result, err := c.Vectorize(context.Background(), VectorizeRequest{DocID: "doc-001", Content: "x"})
	if err != nil {
		t.Fatalf("vectorize: %v", err)
	}
	if result.Status != domain.StatusSuccess {
		t.Errorf("status: got %q", result.Status)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotPath != "/api/v1/vectorize" {
		t.Errorf("path: got %q", gotPath)
	}
}

func TestSearch_ErrorResponseBecomesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	_, err := c.Search(context.Background(), SearchRequest{Query: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "invalid api key" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestListDocuments_QueryParams(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(ListResponse{Count: 0, Documents: []ListedDocument{}})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	if _, err := c.ListDocuments(context.Background(), "agent-7", 10, 25); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotQuery != "limit=25&offset=10&tag=agent-7" {
		t.Errorf("query: got %q", gotQuery)
	}
}

func TestHealth_DegradedReturnsReport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "degraded",
			"checks": map[string]string{"qdrant": "error"},
		})
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	report, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("degraded health must not error: %v", err)
	}
	if report.Status != "degraded" || report.Checks["qdrant"] != "error" {
		t.Errorf("report: %+v", report)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
