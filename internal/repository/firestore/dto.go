package firestore

import (
	"time"

	"github.com/agentdata-cloud/agentdata/internal/domain"
)

// Field names in the metadata collection.
const (
	fieldVectorStatus = "vector_status"
	fieldLastUpdated  = "last_updated"
	fieldMetadata     = "metadata"
	fieldAutoTags     = "auto_tags"
	fieldVersion      = "version"
	fieldError        = "error"
)

func docFromRecord(record *domain.MetadataRecord) map[string]any {
	doc := map[string]any{
		fieldVectorStatus: string(record.VectorStatus),
		fieldLastUpdated:  record.LastUpdated,
		fieldMetadata:     record.Metadata,
	}
	if len(record.AutoTags) > 0 {
		doc[fieldAutoTags] = record.AutoTags
	}
	if record.Error != "" {
		doc[fieldError] = record.Error
	} else {
		doc[fieldError] = ""
	}
	return doc
}

// recordFromDoc tolerates partially written documents; absent or oddly
// typed fields fall back to zero values.
func recordFromDoc(docID string, data map[string]any) domain.MetadataRecord {
	record := domain.MetadataRecord{
		DocID:    docID,
		Metadata: map[string]any{},
	}

	if v, ok := data[fieldVectorStatus].(string); ok {
		record.VectorStatus = domain.VectorStatus(v)
	}
	if v, ok := data[fieldLastUpdated].(time.Time); ok {
		record.LastUpdated = v
	}
	if v, ok := data[fieldMetadata].(map[string]any); ok {
		record.Metadata = v
	}
	if v, ok := data[fieldAutoTags].([]any); ok {
		for _, item := range v {
			if tag, ok := item.(string); ok {
				record.AutoTags = append(record.AutoTags, tag)
			}
		}
	}
	if v, ok := data[fieldVersion].(int64); ok {
		record.Version = v
	}
	if v, ok := data[fieldError].(string); ok {
		record.Error = v
	}
	return record
}
