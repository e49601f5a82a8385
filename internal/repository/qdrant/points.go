package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// pointNamespace seeds the deterministic point IDs. Qdrant only accepts
// UUID or integer point IDs, so each doc_id maps to a stable v5 UUID and
// re-vectorizing a document overwrites its point instead of duplicating it.
var pointNamespace = uuid.MustParse("9f2c1f7e-5a8d-4b63-9c70-2f4f2f6a1d27")

func pointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// UpsertVector writes a document vector with Wait=true so a success result
// means the point is durably stored.
func (s *Store) UpsertVector(ctx context.Context, docID string, vector []float32, payload map[string]any, tag string) error {
	pl := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		pl[k] = v
	}
	pl["doc_id"] = docID
	if tag != "" {
		pl["tag"] = tag
	}

	wait := true
	_, err := s.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(pointID(docID)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(pl),
			},
		},
		Wait: &wait,
	})
	if err != nil {
		return classifyStoreError("upsert", err)
	}
	return nil
}

// SemanticSearch embeds the query text and runs a similarity query. A
// non-empty tag restricts candidates to points carrying that tag.
func (s *Store) SemanticSearch(ctx context.Context, queryText string, limit int, tag string, scoreThreshold float32) ([]domain.VectorHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingDisabled
	}

	embedded, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	lim := uint64(limit)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedded.Embedding...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = &scoreThreshold
	}
	if tag != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("tag", tag)},
		}
	}

	points, err := s.api.Query(ctx, req)
	if err != nil {
		return nil, classifyStoreError("query", err)
	}

	s.logger.Debug("semantic search",
		zap.Int("candidates", len(points)),
		zap.String("tag", tag),
	)
	return s.toHits(points)
}

// QueryByTag pages through all points carrying a tag, most recent first is
// not guaranteed; ordering follows point id.
func (s *Store) QueryByTag(ctx context.Context, tag string, offset, limit int) ([]domain.VectorHit, error) {
	lim := uint64(limit)
	off := uint64(offset)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Limit:          &lim,
		Offset:         &off,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if tag != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("tag", tag)},
		}
	}

	points, err := s.api.Query(ctx, req)
	if err != nil {
		return nil, classifyStoreError("query by tag", err)
	}
	return s.toHits(points)
}

func (s *Store) toHits(points []*qdrant.ScoredPoint) ([]domain.VectorHit, error) {
	hits := make([]domain.VectorHit, 0, len(points))
	for _, p := range points {
		payload := payloadToMap(p.Payload)

		docID, _ := payload["doc_id"].(string)
		if docID == "" {
			// Points written outside this service may lack doc_id.
			switch id := p.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				docID = id.Uuid
			case *qdrant.PointId_Num:
				docID = fmt.Sprintf("%d", id.Num)
			}
		}

		hits = append(hits, domain.VectorHit{
			DocID:   docID,
			Score:   p.Score,
			Payload: payload,
		})
	}
	return hits, nil
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		nested := make(map[string]any, len(kind.StructValue.Fields))
		for k, f := range kind.StructValue.Fields {
			nested[k] = valueToAny(f)
		}
		return nested
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.Values))
		for _, item := range kind.ListValue.Values {
			items = append(items, valueToAny(item))
		}
		return items
	case *qdrant.Value_NullValue:
		return nil
	default:
		return nil
	}
}
