package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const tagPrompt = `You label documents for a knowledge base. Given the document
content and its existing metadata, return a JSON array of at most %d short
lowercase topic tags. Return ONLY the JSON array, no prose.`

// Tagger derives topic tags from document content via a chat completion.
// It is strictly best-effort; callers drop its output on any failure.
type Tagger struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewTagger creates a chat-based tagger sharing the embedder's credentials.
func NewTagger(cfg *Config, model string) *Tagger {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tagger{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// EnhanceMetadata asks the model for topic tags and returns metadata with
// an auto_tags key added. The input map is not mutated.
func (t *Tagger) EnhanceMetadata(ctx context.Context, docID, content string, metadata map[string]any, maxTags int) (map[string]any, error) {
	metaJSON, _ := json.Marshal(metadata)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(tagPrompt, maxTags)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Metadata: %s\n\nContent:\n%s", metaJSON, content)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty tagging response")
	}

	tags, err := parseTags(resp.Choices[0].Message.Content, maxTags)
	if err != nil {
		t.logger.Warn("unparseable tagging response",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return nil, err
	}

	enriched := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		enriched[k] = v
	}
	enriched["auto_tags"] = tags
	return enriched, nil
}

// parseTags extracts a JSON string array, tolerating surrounding prose and
// markdown fences.
func parseTags(raw string, maxTags int) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable tags in response")
	}
	return out, nil
}
