// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package websearch

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	sageerr "github.com/sageway/sage/pkg/errors"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// Compile-time interface check.
var _ Client = (*DuckDuckGo)(nil)

// DuckDuckGo queries the DuckDuckGo HTML endpoint, which needs no API key.
// The HTML is scraped with narrow patterns; when the markup drifts, Search
// degrades to an empty result set rather than failing the query.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a client. endpoint is optional and overridable for
// tests; an empty string selects the public HTML endpoint.
func NewDuckDuckGo(endpoint string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &DuckDuckGo{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

var (
	resultRe  = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	snippetRe = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
)

// Search fetches up to maxResults results for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	reqURL := d.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeSearchUpstreamFailure, "building search request")
	}
	req.Header.Set("User-Agent", "sage/0.1 (+https://github.com/sageway/sage)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeSearchUpstreamFailure, "searching %q", query)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sageerr.Errorf(sageerr.CodeSearchUpstreamFailure,
			"search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeSearchUpstreamFailure, "reading search response")
	}

	return parseResults(string(body), maxResults), nil
}

func parseResults(page string, maxResults int) []Result {
	links := resultRe.FindAllStringSubmatch(page, maxResults)
	snippets := snippetRe.FindAllStringSubmatch(page, maxResults)

	results := make([]Result, 0, len(links))
	for i, link := range links {
		r := Result{
			URL:   cleanURL(link[1]),
			Title: cleanText(link[2]),
		}
		if i < len(snippets) {
			r.Snippet = cleanText(snippets[i][1])
		}
		if r.Title == "" || r.URL == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}

// cleanURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func cleanURL(raw string) string {
	raw = html.UnescapeString(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(raw, "")))
}
