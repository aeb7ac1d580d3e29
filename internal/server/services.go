// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package server

import (
	"context"

	"github.com/sageway/sage/internal/config"
	"github.com/sageway/sage/internal/pattern"
	"github.com/sageway/sage/internal/pipeline"
)

// QueryExecutor resolves queries; satisfied by *pipeline.Pipeline.
type QueryExecutor interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// PatternService is the pattern CRUD surface; satisfied by *pattern.Store.
type PatternService interface {
	List(ctx context.Context, domain string) ([]*pattern.Pattern, error)
	Get(ctx context.Context, domain, id string) (*pattern.Pattern, error)
	Create(ctx context.Context, domain string, p *pattern.Pattern) (*pattern.Pattern, error)
	Update(ctx context.Context, domain, id string, upd pattern.Update) (*pattern.Pattern, error)
	Delete(ctx context.Context, domain, id string) error
	Reindex(ctx context.Context, domain string) error
}

// Services bundles the collaborators the REST routes dispatch to.
type Services struct {
	Config   *config.Config
	Pipeline QueryExecutor
	Patterns PatternService
}
