// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package pipeline_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageway/sage/internal/config"
	"github.com/sageway/sage/internal/library"
	"github.com/sageway/sage/internal/pattern"
	"github.com/sageway/sage/internal/persona"
	"github.com/sageway/sage/internal/pipeline"
	"github.com/sageway/sage/internal/provider"
	"github.com/sageway/sage/internal/websearch"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// --- fakes ---

type fakePatterns struct {
	searchCalls int
	createCalls int
	matches     []pattern.Match
	searchErr   error
	created     []*pattern.Pattern
}

func (f *fakePatterns) Search(_ context.Context, _, _ string, _ int) ([]pattern.Match, error) {
	f.searchCalls++
	return f.matches, f.searchErr
}

func (f *fakePatterns) Create(_ context.Context, domain string, p *pattern.Pattern) (*pattern.Pattern, error) {
	f.createCalls++
	p.ID = pattern.FormatID(domain, f.createCalls)
	p.Domain = domain
	f.created = append(f.created, p)
	return p, nil
}

type fakeLibrary struct {
	calls int
	docs  []library.Document
	text  string
	err   error
}

func (f *fakeLibrary) Query(_ context.Context, _, _, _ string, _ int) ([]library.Document, string, error) {
	f.calls++
	return f.docs, f.text, f.err
}

type fakeWeb struct {
	calls   int
	results []websearch.Result
	err     error
}

func (f *fakeWeb) Search(_ context.Context, _ string, _ int) ([]websearch.Result, error) {
	f.calls++
	return f.results, f.err
}

type archivedEntry struct {
	Domain, Query, Response string
}

type fakeArchive struct {
	entries []archivedEntry
	recent  string
}

func (f *fakeArchive) Append(domain, query, response string) {
	f.entries = append(f.entries, archivedEntry{domain, query, response})
}

func (f *fakeArchive) LoadRecent(_ string, _ int) string { return f.recent }

type fakeProvider struct {
	lastReq provider.Request
	answer  string
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req provider.Request) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeProvider) Close() error { return nil }

type fakeResolver struct {
	prov *fakeProvider
	err  error
}

func (f *fakeResolver) Resolve(string) (provider.Provider, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.prov, "fake-model", nil
}

// --- fixtures ---

type fixture struct {
	patterns *fakePatterns
	library  *fakeLibrary
	web      *fakeWeb
	archive  *fakeArchive
	provider *fakeProvider
	pipe     *pipeline.Pipeline
}

func newFixture(t *testing.T, domains map[string]config.DomainConfig) *fixture {
	t.Helper()

	f := &fixture{
		patterns: &fakePatterns{},
		library:  &fakeLibrary{},
		web:      &fakeWeb{},
		archive:  &fakeArchive{},
		provider: &fakeProvider{answer: "a fine answer"},
	}
	f.pipe = pipeline.New(pipeline.Options{
		Config:    &config.Config{Domains: domains},
		Personas:  persona.NewRegistry(),
		Patterns:  f.patterns,
		Archive:   f.archive,
		Library:   f.library,
		Web:       f.web,
		Providers: &fakeResolver{prov: f.provider},
	})
	return f
}

func match(id string, confidence float64) pattern.Match {
	return pattern.Match{
		Pattern: &pattern.Pattern{
			ID:         id,
			Name:       "name " + id,
			Problem:    "problem for " + id,
			Solution:   "solution for " + id,
			Confidence: confidence,
		},
		Score: 0.9,
	}
}

// --- tests ---

func TestExecute_PatternOverridePrecedence(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"cooking": {Persona: "librarian", PatternsEnabled: true, LibraryPath: "/srv/books"},
	})
	f.patterns.matches = []pattern.Match{match("cooking_001", 0.8)}

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "cooking", Query: "how do I fix a broken sauce",
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.SourcePatternsOverride, resp.Source)
	assert.Equal(t, []string{"cooking_001"}, resp.PatternsUsed)
	// The persona's own data source must not be consulted.
	assert.Zero(t, f.library.calls)
	assert.Zero(t, f.web.calls)
	// Pattern context flows into the prompt.
	assert.Contains(t, f.provider.lastReq.Prompt, "solution for cooking_001")
}

func TestExecute_NoPatternsFallsThroughToDataSource(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"cooking": {Persona: "librarian", PatternsEnabled: true, LibraryPath: "/srv/books"},
	})
	f.library.docs = []library.Document{{Path: "sauces.md", Score: 0.7}}
	f.library.text = "[sauces.md]\nwhisk in cold butter"

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "cooking", Query: "how do I fix a broken sauce",
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.SourceLibrary, resp.Source)
	assert.Equal(t, 1, f.patterns.searchCalls)
	assert.Equal(t, 1, f.library.calls)
	assert.Equal(t, []pipeline.DocumentRef{{Path: "sauces.md", Score: 0.7}}, resp.DocumentsUsed)
	assert.Contains(t, f.provider.lastReq.Prompt, "whisk in cold butter")

	// Document references serialize as objects carrying both path and score.
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"documents_used":[{"path":"sauces.md","score":0.7}]`)
}

func TestExecute_SkipPatterns(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"poetry": {Persona: "poet", PatternsEnabled: true},
	})
	f.patterns.matches = []pattern.Match{match("poetry_001", 0.9)}

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "poetry", Query: "write me a haiku", SkipPatterns: true,
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.SourceVoid, resp.Source)
	assert.Zero(t, f.patterns.searchCalls)
}

func TestExecute_WebSearchDegradesGracefully(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"news": {Persona: "researcher", WebSearch: true},
	})
	f.web.err = sageerr.New(sageerr.CodeSearchUpstreamFailure, "upstream 503")

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "news", Query: "what happened today",
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.SourceInternet, resp.Source)
	assert.NotEmpty(t, resp.Response)
	assert.Empty(t, resp.WebSources)

	var flagged bool
	for _, entry := range resp.Trace {
		if entry.Stage == pipeline.StageFetch && entry.Error {
			flagged = true
		}
	}
	assert.True(t, flagged, "fetch failure must be flagged in the trace")

	// The exchange is archived despite the failed enrichment.
	require.Len(t, f.archive.entries, 1)
	assert.Equal(t, "what happened today", f.archive.entries[0].Query)
}

func TestExecute_WebResultsFormattedIntoPrompt(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"news": {Persona: "researcher", WebSearch: true},
	})
	f.web.results = []websearch.Result{
		{Title: "Headline", URL: "https://example.com/a", Snippet: "the gist"},
	}

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "news", Query: "what happened today",
	})
	require.NoError(t, err)

	assert.Equal(t, []pipeline.WebSource{{Title: "Headline", URL: "https://example.com/a"}}, resp.WebSources)
	assert.Contains(t, f.provider.lastReq.Prompt, "Headline (https://example.com/a)")
	assert.Contains(t, f.provider.lastReq.Prompt, "the gist")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"web_sources":[{"title":"Headline","url":"https://example.com/a"}]`)
}

func TestExecute_PatternSearchFailureDegrades(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"cooking": {Persona: "librarian", PatternsEnabled: true, LibraryPath: "/srv/books"},
	})
	f.patterns.searchErr = sageerr.New(sageerr.CodeIndexEmbedFailure, "embedder down")

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "cooking", Query: "broken sauce",
	})
	require.NoError(t, err)

	// The persona's own data source still runs.
	assert.Equal(t, pipeline.SourceLibrary, resp.Source)
	assert.Equal(t, 1, f.library.calls)
	assert.NotEmpty(t, resp.Response)
}

func TestExecute_LLMErrorStillArchived(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"poetry": {Persona: "poet"},
	})
	f.provider.err = sageerr.New(sageerr.CodeProviderUpstreamFailure, "rate limited")

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "poetry", Query: "write me a haiku",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Response, "[LLM Error:"), "got %q", resp.Response)
	assert.Zero(t, resp.Confidence)

	require.Len(t, f.archive.entries, 1)
	assert.Equal(t, resp.Response, f.archive.entries[0].Response)
}

func TestExecute_MemoryModeAll(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"chat": {
			Persona: "poet",
			Memory:  config.MemoryConfig{Enabled: true, Mode: "all", MaxContextChars: 4000},
		},
	})
	f.archive.recent = "Q: earlier question\nA: earlier answer"

	_, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "chat", Query: "and then what",
	})
	require.NoError(t, err)

	assert.Contains(t, f.provider.lastReq.Prompt, "earlier answer")
}

func TestExecute_MemoryModeTriggers(t *testing.T) {
	domains := map[string]config.DomainConfig{
		"chat": {
			Persona: "poet",
			Memory: config.MemoryConfig{
				Enabled: true, Mode: "triggers",
				TriggerPhrases:  []string{"remember"},
				MaxContextChars: 4000,
			},
		},
	}

	t.Run("trigger matched", func(t *testing.T) {
		f := newFixture(t, domains)
		f.archive.recent = "Q: earlier question\nA: earlier answer"

		_, err := f.pipe.Execute(context.Background(), pipeline.Request{
			Domain: "chat", Query: "do you Remember what I said",
		})
		require.NoError(t, err)
		assert.Contains(t, f.provider.lastReq.Prompt, "earlier answer")
	})

	t.Run("no trigger", func(t *testing.T) {
		f := newFixture(t, domains)
		f.archive.recent = "Q: earlier question\nA: earlier answer"

		_, err := f.pipe.Execute(context.Background(), pipeline.Request{
			Domain: "chat", Query: "something unrelated",
		})
		require.NoError(t, err)
		assert.NotContains(t, f.provider.lastReq.Prompt, "earlier answer")
	})
}

func TestExecute_TemperatureOverride(t *testing.T) {
	temp := float32(0.1)
	f := newFixture(t, map[string]config.DomainConfig{
		"poetry": {Persona: "poet", Temperature: &temp},
	})

	_, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "poetry", Query: "write me a haiku",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, f.provider.lastReq.Temperature, 1e-6)
}

func TestExecute_RoleContextBecomesSystemPrompt(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"poetry": {Persona: "poet", RoleContext: "You write terse verse."},
	})

	_, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "poetry", Query: "write me a haiku",
	})
	require.NoError(t, err)
	assert.Equal(t, "You write terse verse.", f.provider.lastReq.System)
}

func TestExecute_UnknownDomain(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{})

	_, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "ghost", Query: "hello",
	})
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeDomainNotFound))
	assert.Empty(t, f.archive.entries)
}

func TestExecute_UnknownPersonaFailsBeforeArchive(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"broken": {Persona: "oracle"},
	})

	_, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "broken", Query: "hello",
	})
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodePersonaNotFound))
	assert.Empty(t, f.archive.entries)
}

func TestExecute_EmptyQueryRejected(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"poetry": {Persona: "poet"},
	})

	_, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "poetry", Query: "   ",
	})
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodePipelineInputInvalid))
}

func TestExecute_JournalEcho(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"journal": {Persona: "journal"},
	})

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "journal", Query: "pick up the dry cleaning by 7pm tomorrow",
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.SourceDirect, resp.Source)
	assert.True(t, strings.HasPrefix(resp.Response, "["), "response should carry a timestamp prefix, got %q", resp.Response)
	assert.Contains(t, resp.Response, "pick up the dry cleaning by 7pm tomorrow")

	// A journal-entry pattern was captured verbatim, without the LLM.
	require.Len(t, f.patterns.created, 1)
	created := f.patterns.created[0]
	assert.Equal(t, pattern.CategoryJournalEntry, created.Category)
	assert.Equal(t, "pick up the dry cleaning by 7pm tomorrow", created.Solution)
	assert.Empty(t, f.provider.lastReq.Prompt)

	// The exchange is archived like any other.
	require.Len(t, f.archive.entries, 1)
}

func TestExecute_JournalSearch(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"journal": {Persona: "journal"},
	})
	f.patterns.matches = []pattern.Match{
		{Pattern: &pattern.Pattern{
			ID:       "journal_001",
			Name:     "[2026-08-20 09:00] pick up the dry cleaning by 7pm tomorrow",
			Category: pattern.CategoryJournalEntry,
			Solution: "pick up the dry cleaning by 7pm tomorrow",
		}, Score: 0.8},
		// Non-journal patterns in the same domain are never surfaced here.
		{Pattern: &pattern.Pattern{
			ID:       "journal_002",
			Name:     "not a journal entry",
			Category: pattern.CategoryProcedure,
		}, Score: 0.7},
	}

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "journal", Query: "** dry cleaning",
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.SourceDirect, resp.Source)
	assert.Contains(t, resp.Response, "dry cleaning")
	assert.Equal(t, []string{"journal_001"}, resp.PatternsUsed)
	assert.NotContains(t, resp.Response, "not a journal entry")
	assert.Empty(t, f.provider.lastReq.Prompt)
	assert.Equal(t, 1, f.patterns.searchCalls)
}

func TestExecute_JournalSearchNoEntries(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"journal": {Persona: "journal"},
	})

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "journal", Query: "**anything at all",
	})
	require.NoError(t, err)
	assert.Equal(t, "No journal entries found.", resp.Response)
	assert.Zero(t, f.patterns.createCalls)
}

func TestExecute_ConfidenceInheritsTopPattern(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"cooking": {Persona: "librarian", PatternsEnabled: true},
	})
	f.patterns.matches = []pattern.Match{match("cooking_001", 1.0)}

	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "cooking", Query: "broken sauce",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
}

func TestExecute_TraceMetadata(t *testing.T) {
	f := newFixture(t, map[string]config.DomainConfig{
		"poetry": {Persona: "poet"},
	})

	start := time.Now()
	resp, err := f.pipe.Execute(context.Background(), pipeline.Request{
		Domain: "poetry", Query: "write me a haiku",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, "poet", resp.Persona)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMS, int64(0))
	assert.Less(t, resp.ProcessingTimeMS, time.Since(start).Milliseconds()+1000)

	stages := make([]string, 0, len(resp.Trace))
	for _, entry := range resp.Trace {
		stages = append(stages, entry.Stage)
	}
	assert.Contains(t, stages, pipeline.StageReceived)
	assert.Contains(t, stages, pipeline.StageLLMInvoke)
	assert.Contains(t, stages, pipeline.StageArchiveAppend)
	assert.Contains(t, stages, pipeline.StageResponse)
}
