// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package server

import (
	"context"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sageway/sage/internal/pattern"
	"github.com/sageway/sage/internal/pipeline"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Query endpoint
	huma.Register(s.api, huma.Operation{
		OperationID: "query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query",
		Summary:     "Resolve a query through the persona pipeline",
		Tags:        []string{"query"},
	}, s.handleQuery)

	// Domain endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-domains",
		Method:      http.MethodGet,
		Path:        "/api/v1/domains",
		Summary:     "List configured domains",
		Tags:        []string{"domains"},
	}, s.handleListDomains)

	// Pattern endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-patterns",
		Method:      http.MethodGet,
		Path:        "/api/v1/domains/{domain}/patterns",
		Summary:     "List patterns in a domain",
		Tags:        []string{"patterns"},
	}, s.handleListPatterns)

	huma.Register(s.api, huma.Operation{
		OperationID: "create-pattern",
		Method:      http.MethodPost,
		Path:        "/api/v1/domains/{domain}/patterns",
		Summary:     "Create a pattern",
		Tags:        []string{"patterns"},
	}, s.handleCreatePattern)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-pattern",
		Method:      http.MethodGet,
		Path:        "/api/v1/domains/{domain}/patterns/{id}",
		Summary:     "Get a pattern",
		Tags:        []string{"patterns"},
	}, s.handleGetPattern)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-pattern",
		Method:      http.MethodPut,
		Path:        "/api/v1/domains/{domain}/patterns/{id}",
		Summary:     "Update a pattern",
		Tags:        []string{"patterns"},
	}, s.handleUpdatePattern)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-pattern",
		Method:      http.MethodDelete,
		Path:        "/api/v1/domains/{domain}/patterns/{id}",
		Summary:     "Delete a pattern",
		Tags:        []string{"patterns"},
	}, s.handleDeletePattern)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindex-domain",
		Method:      http.MethodPost,
		Path:        "/api/v1/domains/{domain}/reindex",
		Summary:     "Regenerate the domain's pattern embeddings",
		Tags:        []string{"patterns"},
	}, s.handleReindex)
}

// --- Request/Response types for huma ---

type queryInput struct {
	Body struct {
		Domain       string `json:"domain" minLength:"1" doc:"Target domain"`
		Query        string `json:"query" minLength:"1" doc:"Natural-language query"`
		SkipPatterns bool   `json:"skip_patterns,omitempty" doc:"Disable the pattern-override check"`
		ShowThinking bool   `json:"show_thinking,omitempty" doc:"Request visible reasoning"`
	}
}
type queryOutput struct {
	Body pipeline.Response
}

type domainSummary struct {
	Name            string `json:"name"`
	Persona         string `json:"persona"`
	PatternsEnabled bool   `json:"patterns_enabled"`
	WebSearch       bool   `json:"web_search"`
	LibraryPath     string `json:"library_path,omitempty"`
}
type listDomainsOutput struct {
	Body struct {
		Domains []domainSummary `json:"domains"`
	}
}

type domainInput struct {
	Domain string `path:"domain"`
}
type listPatternsOutput struct {
	Body struct {
		Patterns []*pattern.Pattern `json:"patterns"`
	}
}

type createPatternInput struct {
	Domain string `path:"domain"`
	Body   pattern.Pattern
}
type patternOutput struct {
	Body pattern.Pattern
}

type patternIDInput struct {
	Domain string `path:"domain"`
	ID     string `path:"id"`
}

type updatePatternInput struct {
	Domain string `path:"domain"`
	ID     string `path:"id"`
	Body   struct {
		Name          *string           `json:"name,omitempty"`
		Category      *pattern.Category `json:"category,omitempty"`
		Problem       *string           `json:"problem,omitempty"`
		Solution      *string           `json:"solution,omitempty"`
		Steps         []string          `json:"steps,omitempty"`
		Effects       map[string]string `json:"effects,omitempty"`
		Confidence    *float64          `json:"confidence,omitempty"`
		Tags          []string          `json:"tags,omitempty"`
		Sources       []string          `json:"sources,omitempty"`
		Related       []string          `json:"related,omitempty"`
		Prerequisites []string          `json:"prerequisites,omitempty"`
		Alternatives  []string          `json:"alternatives,omitempty"`
	}
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// --- Handlers ---

func (s *Server) handleQuery(ctx context.Context, input *queryInput) (*queryOutput, error) {
	resp, err := s.services.Pipeline.Execute(ctx, pipeline.Request{
		Domain:       input.Body.Domain,
		Query:        input.Body.Query,
		SkipPatterns: input.Body.SkipPatterns,
		ShowThinking: input.Body.ShowThinking,
	})
	if err != nil {
		return nil, humaError(err)
	}
	return &queryOutput{Body: *resp}, nil
}

func (s *Server) handleListDomains(_ context.Context, _ *struct{}) (*listDomainsOutput, error) {
	out := &listDomainsOutput{}
	out.Body.Domains = make([]domainSummary, 0, len(s.services.Config.Domains))
	for name, dc := range s.services.Config.Domains {
		out.Body.Domains = append(out.Body.Domains, domainSummary{
			Name:            name,
			Persona:         dc.Persona,
			PatternsEnabled: dc.PatternsEnabled,
			WebSearch:       dc.WebSearch,
			LibraryPath:     dc.LibraryPath,
		})
	}
	sort.Slice(out.Body.Domains, func(i, j int) bool {
		return out.Body.Domains[i].Name < out.Body.Domains[j].Name
	})
	return out, nil
}

func (s *Server) handleListPatterns(ctx context.Context, input *domainInput) (*listPatternsOutput, error) {
	patterns, err := s.services.Patterns.List(ctx, input.Domain)
	if err != nil {
		return nil, humaError(err)
	}
	out := &listPatternsOutput{}
	out.Body.Patterns = patterns
	return out, nil
}

func (s *Server) handleCreatePattern(ctx context.Context, input *createPatternInput) (*patternOutput, error) {
	p := input.Body
	created, err := s.services.Patterns.Create(ctx, input.Domain, &p)
	if err != nil {
		return nil, humaError(err)
	}
	return &patternOutput{Body: *created}, nil
}

func (s *Server) handleGetPattern(ctx context.Context, input *patternIDInput) (*patternOutput, error) {
	p, err := s.services.Patterns.Get(ctx, input.Domain, input.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &patternOutput{Body: *p}, nil
}

func (s *Server) handleUpdatePattern(ctx context.Context, input *updatePatternInput) (*patternOutput, error) {
	upd := pattern.Update{
		Name:          input.Body.Name,
		Category:      input.Body.Category,
		Problem:       input.Body.Problem,
		Solution:      input.Body.Solution,
		Steps:         input.Body.Steps,
		Effects:       input.Body.Effects,
		Confidence:    input.Body.Confidence,
		Tags:          input.Body.Tags,
		Sources:       input.Body.Sources,
		Related:       input.Body.Related,
		Prerequisites: input.Body.Prerequisites,
		Alternatives:  input.Body.Alternatives,
	}
	p, err := s.services.Patterns.Update(ctx, input.Domain, input.ID, upd)
	if err != nil {
		return nil, humaError(err)
	}
	return &patternOutput{Body: *p}, nil
}

func (s *Server) handleDeletePattern(ctx context.Context, input *patternIDInput) (*statusOutput, error) {
	if err := s.services.Patterns.Delete(ctx, input.Domain, input.ID); err != nil {
		return nil, humaError(err)
	}
	out := &statusOutput{}
	out.Body.Status = "deleted"
	return out, nil
}

func (s *Server) handleReindex(ctx context.Context, input *domainInput) (*statusOutput, error) {
	if err := s.services.Patterns.Reindex(ctx, input.Domain); err != nil {
		return nil, humaError(err)
	}
	out := &statusOutput{}
	out.Body.Status = "reindexed"
	return out, nil
}
