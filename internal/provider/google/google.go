// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/sageway/sage/internal/provider"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// DefaultModel is used when a model reference omits the model portion.
const DefaultModel = "gemini-2.5-flash"

// Config holds Google Gemini provider configuration.
type Config struct {
	APIKey string
}

// Compile-time interface check.
var _ provider.Provider = (*Provider)(nil)

// Provider implements provider.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sageerr.New(sageerr.CodeProviderRequestInvalid, "google: missing api key")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{client: client}, nil
}

func (p *Provider) Name() string { return "google" }

// Complete runs a non-streaming content generation call.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", sageerr.Wrapf(err, sageerr.CodeProviderUpstreamFailure, "google completion")
	}

	text := resp.Text()
	if text == "" {
		return "", sageerr.New(sageerr.CodeProviderUpstreamFailure, "google completion: empty response")
	}
	return text, nil
}

func (p *Provider) Close() error { return nil }
