// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package embed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageway/sage/internal/embed"
)

func TestHashingEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := embed.NewHashingEmbedder(0)

	a, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimension())
}

func TestHashingEmbedder_EmptyInput(t *testing.T) {
	e := embed.NewHashingEmbedder(64)

	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vec, 64)

	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestHashingEmbedder_Normalized(t *testing.T) {
	e := embed.NewHashingEmbedder(128)

	vec, err := e.Embed(context.Background(), "substitute buttermilk with milk and lemon juice")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestHashingEmbedder_SimilarTextScoresHigher(t *testing.T) {
	ctx := context.Background()
	e := embed.NewHashingEmbedder(0)

	query, err := e.Embed(ctx, "how do I fix a leaking kitchen faucet")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "fixing a leaking faucet in the kitchen")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "annual migration routes of arctic terns")
	require.NoError(t, err)

	assert.Greater(t, dot(query, near), dot(query, far))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
