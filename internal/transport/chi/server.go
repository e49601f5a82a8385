// Package chi is the HTTP transport: routing, request decoding, and the
// wall-clock budgets the handlers own.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/domain"
	"github.com/agentdata-cloud/agentdata/internal/logger"
	"github.com/agentdata-cloud/agentdata/internal/metrics"
	healthuc "github.com/agentdata-cloud/agentdata/internal/usecase/health"
	searchuc "github.com/agentdata-cloud/agentdata/internal/usecase/search"
	vectorizeuc "github.com/agentdata-cloud/agentdata/internal/usecase/vectorize"
)

// defaultSearchBudget is the wall-clock budget of one search request.
const defaultSearchBudget = 600 * time.Millisecond

const defaultListLimit = 50

// VectorLister pages through stored points by tag.
type VectorLister interface {
	QueryByTag(ctx context.Context, tag string, offset, limit int) ([]domain.VectorHit, error)
}

// Server is the HTTP API server.
type Server struct {
	vectorize    *vectorizeuc.Service
	search       *searchuc.Service
	health       *healthuc.Service
	lister       VectorLister
	searchBudget time.Duration
	logger       *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	vectorize *vectorizeuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	lister VectorLister,
	logger *zap.Logger,
) *Server {
	return &Server{
		vectorize:    vectorize,
		search:       search,
		health:       health,
		lister:       lister,
		searchBudget: defaultSearchBudget,
		logger:       logger,
	}
}

// WithSearchBudget overrides the search wall-clock budget.
func (s *Server) WithSearchBudget(budget time.Duration) *Server {
	if budget > 0 {
		s.searchBudget = budget
	}
	return s
}

// Router assembles the middleware chain and routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(jsonRecoverer)
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/vectorize", s.handleVectorize)
		r.Post("/vectorize/batch", s.handleVectorizeBatch)
		r.Post("/search", s.handleSearch)
		r.Get("/documents", s.handleListDocuments)
	})

	return r
}

type vectorizeRequest struct {
	DocID             string         `json:"doc_id"`
	Content           string         `json:"content"`
	Metadata          map[string]any `json:"metadata"`
	Tag               string         `json:"tag"`
	UpdateFirestore   *bool          `json:"update_firestore"`
	EnableAutoTagging *bool          `json:"enable_auto_tagging"`
}

func (r vectorizeRequest) toUsecase() vectorizeuc.Request {
	return vectorizeuc.Request{
		DocID:             r.DocID,
		Content:           r.Content,
		Metadata:          r.Metadata,
		Tag:               r.Tag,
		UpdateFirestore:   boolOrDefault(r.UpdateFirestore, true),
		EnableAutoTagging: boolOrDefault(r.EnableAutoTagging, true),
	}
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	var req vectorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result := s.vectorize.VectorizeDocument(r.Context(), req.toUsecase())
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Documents       []vectorizeRequest `json:"documents"`
	UpdateFirestore *bool              `json:"update_firestore"`
}

func (s *Server) handleVectorizeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents is required")
		return
	}

	reqs := make([]vectorizeuc.Request, 0, len(req.Documents))
	for _, doc := range req.Documents {
		item := doc.toUsecase()
		if req.UpdateFirestore != nil {
			item.UpdateFirestore = *req.UpdateFirestore
		}
		reqs = append(reqs, item)
	}

	outcome := s.vectorize.BatchVectorizeDocuments(r.Context(), reqs)
	writeJSON(w, http.StatusOK, outcome)
}

type searchRequest struct {
	Query           string         `json:"query"`
	MetadataFilters map[string]any `json:"metadata_filters"`
	Tags            []string       `json:"tags"`
	PathQuery       string         `json:"path_query"`
	Limit           int            `json:"limit"`
	ScoreThreshold  float32        `json:"score_threshold"`
	QdrantTag       string         `json:"qdrant_tag"`
}

// handleSearch owns the search wall-clock budget: the whole pipeline runs
// under one deadline and its expiry is reported as a timeout outcome.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.searchBudget)
	defer cancel()

	outcome := s.search.RAGSearch(ctx, searchuc.Query{
		Text:            req.Query,
		MetadataFilters: req.MetadataFilters,
		Tags:            req.Tags,
		PathQuery:       req.PathQuery,
		Limit:           req.Limit,
		ScoreThreshold:  req.ScoreThreshold,
		QdrantTag:       req.QdrantTag,
	})
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	offset := intQueryParam(r, "offset", 0)
	limit := intQueryParam(r, "limit", defaultListLimit)

	ctx := logger.With(r.Context(), zap.String("tag", tag))
	hits, err := s.lister.QueryByTag(ctx, tag, offset, limit)
	if err != nil {
		logger.FromContext(ctx).Warn("list documents failed", zap.Error(err))
		writeError(w, statusFromDomainError(err), "listing failed: "+err.Error())
		return
	}

	type listedDocument struct {
		DocID   string         `json:"doc_id"`
		Payload map[string]any `json:"payload,omitempty"`
	}
	docs := make([]listedDocument, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, listedDocument{DocID: hit.DocID, Payload: hit.Payload})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// requestLogger injects a request-scoped logger and emits one wide event
// per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := s.logger.With(
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		ctx := logger.ContextWithLogger(r.Context(), reqLogger)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLogger.Info("request served",
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// jsonRecoverer converts handler panics into a JSON 500 instead of chi's
// plain-text response. The request-scoped logger carries the request id
// into the panic log.
func jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context()).Error("handler panicked",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func statusFromDomainError(err error) int {
	switch {
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
