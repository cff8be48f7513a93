package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.uber.org/zap"
)

// DefaultClassName is the Weaviate class holding indexed document chunks.
const DefaultClassName = "DocumentChunk"

// WeaviateConfig configures a WeaviateRetriever.
type WeaviateConfig struct {
	// Host is the Weaviate endpoint, e.g. "localhost:8080".
	Host string

	// Scheme is "http" or "https".
	Scheme string

	// ClassName overrides DefaultClassName.
	ClassName string

	// Logger receives retrieval log output. Nil disables logging.
	Logger *zap.Logger
}

// WeaviateRetriever performs nearText similarity search against one Weaviate
// class.
type WeaviateRetriever struct {
	client    *weaviate.Client
	className string
	logger    *zap.Logger
}

// NewWeaviateRetriever connects to Weaviate and returns a retriever.
func NewWeaviateRetriever(cfg WeaviateConfig) (*WeaviateRetriever, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	className := cfg.ClassName
	if className == "" {
		className = DefaultClassName
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.Host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateRetriever{client: client, className: className, logger: logger}, nil
}

// chunkResult mirrors one object of the GraphQL Get response.
type chunkResult struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// SimilaritySearch runs a nearText query and returns the top k passages,
// best first.
func (r *WeaviateRetriever) SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		k = 4
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "document_id"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithNearText(nearText).
		WithFields(fields...).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("similarity search: %s", result.Errors[0].Message)
	}

	// Round-trip through JSON for a typed view of the response.
	raw, err := json.Marshal(result.Data["Get"])
	if err != nil {
		return nil, fmt.Errorf("marshal search response: %w", err)
	}
	var parsed map[string][]chunkResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}

	chunks := parsed[r.className]
	passages := make([]Passage, 0, len(chunks))
	for _, c := range chunks {
		passages = append(passages, Passage{
			Text:       c.Content,
			DocumentID: c.DocumentID,
			Score:      c.Additional.Certainty,
		})
	}

	r.logger.Debug("similarity search completed",
		zap.String("query", query),
		zap.Int("passages", len(passages)))
	return passages, nil
}
