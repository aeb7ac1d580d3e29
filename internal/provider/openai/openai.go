// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/sageway/sage/internal/provider"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// DefaultModel is used when a model reference omits the model portion.
const DefaultModel = "gpt-4o-mini"

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Compile-time interface check.
var _ provider.Provider = (*Provider)(nil)

// Provider implements provider.Provider using the OpenAI chat completions API.
type Provider struct {
	client openaisdk.Client
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sageerr.New(sageerr.CodeProviderRequestInvalid, "openai: missing api key")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: openaisdk.NewClient(opts...)}, nil
}

func (p *Provider) Name() string { return "openai" }

// Complete runs a non-streaming chat completion.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openaisdk.SystemMessage(req.System))
	}
	msgs = append(msgs, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(float64(req.Temperature))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", sageerr.Wrapf(err, sageerr.CodeProviderUpstreamFailure, "openai completion")
	}
	if len(resp.Choices) == 0 {
		return "", sageerr.New(sageerr.CodeProviderUpstreamFailure, "openai completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Close() error { return nil }
