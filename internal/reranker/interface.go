// Package reranker re-orders semantic property candidates by lexical
// agreement with the mention that produced them.
package reranker

import (
	"context"
)

// Candidate is a property returned by a similarity search.
type Candidate struct {
	PropertyID string  // Canonical property id
	Text       string  // Searchable text: display name, address, aliases
	Score      float32 // Similarity from the search (0.0-1.0)
}

// Scored is a candidate after re-ranking.
type Scored struct {
	Candidate
	Overlap      float32 // Share of mention terms found in Text (0.0-1.0)
	Combined     float32 // Final score used for ordering
	OriginalRank int     // Position in the search results (0-indexed)
}

// Reranker re-ranks candidates for a mention.
type Reranker interface {
	// Rerank returns candidates sorted by Combined descending, ties broken
	// by PropertyID, limited to topK. topK <= 0 keeps every candidate.
	Rerank(ctx context.Context, mention string, candidates []Candidate, topK int) ([]Scored, error)

	// Close releases any resources held by the reranker.
	Close() error
}
