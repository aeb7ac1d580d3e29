// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package provider abstracts the LLM collaborator: given an assembled
// prompt and sampling parameters it returns text or fails with an upstream
// error. The pipeline treats every failure here as recoverable.
package provider

import "context"

// Request is a single completion request.
type Request struct {
	// Model is the provider-specific model identifier.
	Model string
	// System is the optional system/role context.
	System string
	// Prompt is the fully assembled user prompt.
	Prompt string
	// Temperature of 0 leaves the provider default in place.
	Temperature float32
	// MaxTokens of 0 selects a provider-appropriate default.
	MaxTokens int
}

// Provider is a single LLM backend. Implementations must respect ctx
// deadlines and return coded errors for upstream failures.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Close() error
}
