// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package index

import "context"

// Result is a single semantic search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Index maps identifiers to content embeddings and answers top-K cosine
// similarity queries. Implementations are scoped to one domain and one
// content kind (patterns or documents).
type Index interface {
	// Upsert recomputes and stores the embedding for id when the content hash
	// of text differs from the stored hash. Unchanged content is a no-op and
	// must not invoke the embedder.
	Upsert(ctx context.Context, id, text string) error

	// Search embeds queryText and returns up to topK entries with cosine
	// similarity >= minSimilarity, ordered by descending score with ties
	// broken by insertion order. An empty index returns an empty result.
	Search(ctx context.Context, queryText string, topK int, minSimilarity float64) ([]Result, error)

	// Remove deletes the entry for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	// Len reports the number of stored entries.
	Len() int

	Close() error
}

// cosine returns the dot product of two L2-normalized vectors. A zero vector
// yields 0 against everything rather than dividing by zero.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
