// Package sdk is a thin typed HTTP client for the agentdata API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client is the agentdata SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("agentdata: base URL required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// VectorizeRequest mirrors POST /api/v1/vectorize.
type VectorizeRequest struct {
	DocID             string         `json:"doc_id"`
	Content           string         `json:"content"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Tag               string         `json:"tag,omitempty"`
	UpdateFirestore   *bool          `json:"update_firestore,omitempty"`
	EnableAutoTagging *bool          `json:"enable_auto_tagging,omitempty"`
}

// Vectorize embeds and stores one document.
func (c *Client) Vectorize(ctx context.Context, req VectorizeRequest) (*domain.VectorizeResult, error) {
	var result domain.VectorizeResult
	if err := c.post(ctx, "/api/v1/vectorize", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchRequest mirrors POST /api/v1/vectorize/batch.
type BatchRequest struct {
	Documents       []VectorizeRequest `json:"documents"`
	UpdateFirestore *bool              `json:"update_firestore,omitempty"`
}

// VectorizeBatch embeds and stores a batch of documents.
func (c *Client) VectorizeBatch(ctx context.Context, req BatchRequest) (*domain.BatchOutcome, error) {
	var outcome domain.BatchOutcome
	if err := c.post(ctx, "/api/v1/vectorize/batch", req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// SearchRequest mirrors POST /api/v1/search.
type SearchRequest struct {
	Query           string         `json:"query"`
	MetadataFilters map[string]any `json:"metadata_filters,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	PathQuery       string         `json:"path_query,omitempty"`
	Limit           int            `json:"limit,omitempty"`
	ScoreThreshold  float32        `json:"score_threshold,omitempty"`
	QdrantTag       string         `json:"qdrant_tag,omitempty"`
}

// Search runs a RAG search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*domain.SearchOutcome, error) {
	var outcome domain.SearchOutcome
	if err := c.post(ctx, "/api/v1/search", req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListedDocument is one entry of a document listing.
type ListedDocument struct {
	DocID   string         `json:"doc_id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ListResponse mirrors GET /api/v1/documents.
type ListResponse struct {
	Documents []ListedDocument `json:"documents"`
	Count     int              `json:"count"`
	Offset    int              `json:"offset"`
	Limit     int              `json:"limit"`
}

// ListDocuments pages through stored documents by tag.
func (c *Client) ListDocuments(ctx context.Context, tag string, offset, limit int) (*ListResponse, error) {
	q := url.Values{}
	if tag != "" {
		q.Set("tag", tag)
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthReport mirrors GET /health.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health reports component availability. A degraded service returns the
// report without an error.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var report HealthReport
	err := c.do(ctx, http.MethodGet, "/health", nil, &report)
	if err != nil && !isAPIStatus(err, http.StatusServiceUnavailable) {
		return nil, err
	}
	return &report, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("agentdata: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("agentdata: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agentdata: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agentdata: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &errBody) == nil {
			apiErr.Message = errBody.Error
		}
		// A degraded health response still carries a decodable report.
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("agentdata: decode response: %w", err)
	}
	return nil
}
