// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package embed

import "context"

// Embedder converts text into a fixed-length vector. Implementations must be
// deterministic for a fixed model version and safe for concurrent use.
// Embedding the empty string returns a valid (zero) vector, not an error.
type Embedder interface {
	// Embed returns the embedding for text. The returned slice has exactly
	// Dimension() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension reports the fixed dimensionality of produced vectors.
	Dimension() int

	// Model identifies the generating model; it is persisted alongside cached
	// vectors so stale caches from a different model are detectable.
	Model() string
}
