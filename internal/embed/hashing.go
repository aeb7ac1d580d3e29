// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// defaultDimensions matches the sentence-transformer models the embedding
// cache format was designed around (all-MiniLM-L6-v2 produces 384 floats).
const defaultDimensions = 384

// Compile-time interface check.
var _ Embedder = (*HashingEmbedder)(nil)

// HashingEmbedder is a local, dependency-free embedder using signed feature
// hashing over word unigrams and bigrams. It is not a learned model — scores
// are only meaningful relative to each other — but it is deterministic,
// needs no network, and preserves the "near-duplicate text ranks above
// unrelated text" property the semantic search layer depends on.
type HashingEmbedder struct {
	dimensions int
	tokenRe    *regexp.Regexp
}

// NewHashingEmbedder creates a HashingEmbedder. A non-positive dimensions
// value selects the default (384).
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &HashingEmbedder{
		dimensions: dimensions,
		tokenRe:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

func (e *HashingEmbedder) Dimension() int { return e.dimensions }

func (e *HashingEmbedder) Model() string { return "hashing-v1" }

// Embed computes the L2-normalized hashed feature vector for text.
// Empty or token-free input yields the zero vector.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	for i, tok := range tokens {
		e.accumulate(vec, tok, 1.0)
		if i+1 < len(tokens) {
			// Bigrams carry word-order signal; weighted below unigrams so
			// shared vocabulary still dominates similarity.
			e.accumulate(vec, tok+" "+tokens[i+1], 0.5)
		}
	}

	normalize(vec)
	return vec, nil
}

// accumulate adds weight into the bucket selected by the feature hash.
// A second hash picks the sign, which keeps the expected dot product of
// unrelated texts near zero.
func (e *HashingEmbedder) accumulate(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

func (e *HashingEmbedder) tokenize(text string) []string {
	return e.tokenRe.FindAllString(strings.ToLower(text), -1)
}

// normalize scales vec to unit L2 length in place. The zero vector is left
// untouched so degenerate embeddings score 0 against everything.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
