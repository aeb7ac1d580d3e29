// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Ffaucet">Fixing a <b>leaking</b> faucet</a>
  <a class="result__snippet" href="#">Step by step guide to stop the drip.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://example.org/tools">Essential plumbing tools</a>
  <a class="result__snippet" href="#">What you need before starting.</a>
</div>`

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "leaking faucet", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	client := NewDuckDuckGo(srv.URL)
	results, err := client.Search(context.Background(), "leaking faucet", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Fixing a leaking faucet", results[0].Title)
	assert.Equal(t, "https://example.com/faucet", results[0].URL)
	assert.Equal(t, "Step by step guide to stop the drip.", results[0].Snippet)
	assert.Equal(t, "https://example.org/tools", results[1].URL)
}

func TestDuckDuckGo_MaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	client := NewDuckDuckGo(srv.URL)
	results, err := client.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDuckDuckGo_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewDuckDuckGo(srv.URL)
	_, err := client.Search(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestParseResults_UnrecognizedMarkup(t *testing.T) {
	assert.Empty(t, parseResults("<html><body>nothing here</body></html>", 5))
}
