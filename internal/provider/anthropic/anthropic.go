// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sageway/sage/internal/provider"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// DefaultModel is used when a model reference omits the model portion.
const DefaultModel = "claude-haiku-4-5"

const defaultMaxTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Compile-time interface check.
var _ provider.Provider = (*Provider)(nil)

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sageerr.New(sageerr.CodeProviderRequestInvalid, "anthropic: missing api key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: anthropicsdk.NewClient(opts...)}, nil
}

func (p *Provider) Name() string { return "anthropic" }

// Complete sends a single-turn message and concatenates the text blocks of
// the response.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(float64(req.Temperature))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", sageerr.Wrapf(err, sageerr.CodeProviderUpstreamFailure, "anthropic completion")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (p *Provider) Close() error { return nil }
