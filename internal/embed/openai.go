// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package embed

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	sageerr "github.com/sageway/sage/pkg/errors"
)

// openaiDimensions is the reduced output size requested from
// text-embedding-3-small so hosted and local vectors share one cache format.
const openaiDimensions = 384

// Compile-time interface check.
var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder produces embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an OpenAIEmbedder. baseURL is optional and
// useful for pointing tests at a mock server.
func NewOpenAIEmbedder(apiKey, baseURL string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, sageerr.New(sageerr.CodeEmbedInputInvalid, "openai embedder: missing api key")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  openai.EmbeddingModelTextEmbedding3Small,
	}, nil
}

func (e *OpenAIEmbedder) Dimension() int { return openaiDimensions }

func (e *OpenAIEmbedder) Model() string { return string(e.model) }

// Embed requests an embedding for text. Empty input is embedded as a single
// space: the API rejects empty strings, but the contract requires a valid
// vector for them.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		text = " "
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model:      e.model,
		Dimensions: openai.Int(int64(openaiDimensions)),
	})
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeEmbedUpstreamFailure, "openai embeddings request")
	}
	if len(resp.Data) == 0 {
		return nil, sageerr.New(sageerr.CodeEmbedUpstreamFailure, "openai embeddings: empty response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}

	normalize(vec)
	return vec, nil
}
