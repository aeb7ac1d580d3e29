// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package websearch defines the external web-search collaborator consumed
// by the researcher persona. Results are best-effort enrichment: callers
// must tolerate errors and empty result sets.
package websearch

import "context"

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Client performs a web search. Implementations must respect ctx deadlines;
// the pipeline bounds every call with a timeout.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
