// Package retrieval provides similarity search over indexed document
// passages. The Retriever interface is the pipeline's only view of the
// retrieval layer; the shipped implementation queries a Weaviate vector
// database.
package retrieval

import "context"

// Passage is one ranked retrieval result.
type Passage struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// Retriever performs similarity search over indexed passages.
type Retriever interface {
	// SimilaritySearch returns up to k passages ranked by relevance to the
	// query, best first.
	SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error)
}
