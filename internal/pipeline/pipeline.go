// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package pipeline implements query resolution: persona selection, the
// pattern-override decision, context assembly from memory and data sources,
// LLM invocation, and the archive append that closes every cycle.
//
// Enrichment failures (pattern search, document search, web search, memory
// load) never abort a query; they degrade to "no data from this source" with
// an error-flagged trace entry. Only failures that make it impossible to
// identify the domain or persona are fatal, and those surface before any
// archive write.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sageway/sage/internal/config"
	"github.com/sageway/sage/internal/library"
	"github.com/sageway/sage/internal/pattern"
	"github.com/sageway/sage/internal/persona"
	"github.com/sageway/sage/internal/provider"
	"github.com/sageway/sage/internal/websearch"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// Stage names, in pipeline order. They appear verbatim in trace entries.
const (
	StageReceived       = "RECEIVED"
	StageMemoryLoad     = "MEMORY_LOAD"
	StagePatternCheck   = "PATTERN_OVERRIDE_CHECK"
	StageFetch          = "DATA_SOURCE_FETCH"
	StagePromptAssembly = "PROMPT_ASSEMBLY"
	StageLLMInvoke      = "LLM_INVOKE"
	StageArchiveAppend  = "ARCHIVE_APPEND"
	StageResponse       = "RESPONSE"
)

// Source values reported in responses.
const (
	SourcePatternsOverride = "patterns_override"
	SourceVoid             = "void"
	SourceLibrary          = "library"
	SourceInternet         = "internet"
	SourceDirect           = "direct"
)

const (
	defaultPatternResults  = 5
	defaultDocumentResults = 3
	defaultWebResults      = 3
	webSearchTimeout       = 20 * time.Second
)

// Request is one query to resolve.
type Request struct {
	Domain string
	Query  string
	// SkipPatterns disables the pattern-override check for this query even
	// when the domain enables it.
	SkipPatterns bool
	// ShowThinking requests visible reasoning regardless of the persona's
	// default.
	ShowThinking bool
}

// TraceEntry records one stage outcome for diagnostics.
type TraceEntry struct {
	Stage string `json:"stage"`
	Note  string `json:"note"`
	Error bool   `json:"error,omitempty"`
}

// DocumentRef identifies a library document that contributed context,
// with its similarity score.
type DocumentRef struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// WebSource identifies a web result that contributed context.
type WebSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Response is the resolved answer plus trace metadata.
type Response struct {
	Response         string        `json:"response"`
	Source           string        `json:"source"`
	Persona          string        `json:"persona"`
	Confidence       float64       `json:"confidence"`
	PatternsUsed     []string      `json:"patterns_used,omitempty"`
	DocumentsUsed    []DocumentRef `json:"documents_used,omitempty"`
	WebSources       []WebSource   `json:"web_sources,omitempty"`
	ProcessingTimeMS int64         `json:"processing_time_ms"`
	TraceID          string        `json:"trace_id"`
	Trace            []TraceEntry  `json:"trace,omitempty"`

	// topPatternConfidence feeds the confidence heuristic when the pattern
	// override engages; re-resolving the pattern later would race with
	// concurrent updates.
	topPatternConfidence float64
}

// PatternStore is the pattern collaborator consumed by the pipeline.
type PatternStore interface {
	Search(ctx context.Context, domain, queryText string, maxResults int) ([]pattern.Match, error)
	Create(ctx context.Context, domain string, p *pattern.Pattern) (*pattern.Pattern, error)
}

// DocumentSearcher is the local document-library collaborator.
type DocumentSearcher interface {
	Query(ctx context.Context, domain, basePath, query string, maxResults int) ([]library.Document, string, error)
}

// Archiver records query/response cycles and serves memory context.
type Archiver interface {
	Append(domain, query, response string)
	LoadRecent(domain string, maxChars int) string
}

// ProviderResolver routes a domain to a concrete LLM provider and model.
type ProviderResolver interface {
	Resolve(domain string) (provider.Provider, string, error)
}

// Options wires a Pipeline's collaborators. Config and Personas are
// required; nil enrichment collaborators simply contribute no context.
type Options struct {
	Config    *config.Config
	Personas  *persona.Registry
	Patterns  PatternStore
	Archive   Archiver
	Library   DocumentSearcher
	Web       websearch.Client
	Providers ProviderResolver
}

// Pipeline resolves queries. Safe for concurrent use; every Execute call is
// independent and shares no mutable state with other calls.
type Pipeline struct {
	cfg       *config.Config
	personas  *persona.Registry
	patterns  PatternStore
	archive   Archiver
	library   DocumentSearcher
	web       websearch.Client
	providers ProviderResolver

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Pipeline from its collaborators.
func New(opts Options) *Pipeline {
	return &Pipeline{
		cfg:       opts.Config,
		personas:  opts.Personas,
		patterns:  opts.Patterns,
		archive:   opts.Archive,
		library:   opts.Library,
		web:       opts.Web,
		providers: opts.Providers,
		now:       time.Now,
	}
}

// Execute resolves one query through the full stage sequence.
func (pl *Pipeline) Execute(ctx context.Context, req Request) (*Response, error) {
	start := pl.now()

	// RECEIVED
	if strings.TrimSpace(req.Query) == "" {
		return nil, sageerr.New(sageerr.CodePipelineInputInvalid, "query must not be empty",
			sageerr.FieldStage(StageReceived))
	}
	if req.Domain == "" {
		return nil, sageerr.New(sageerr.CodePipelineInputInvalid, "domain must not be empty",
			sageerr.FieldStage(StageReceived))
	}

	dc, err := pl.cfg.Domain(req.Domain)
	if err != nil {
		return nil, err
	}
	pers, err := pl.personas.Resolve(dc.Persona)
	if err != nil {
		// Misconfigured domain: fatal for the query, and nothing is archived.
		return nil, err
	}

	resp := &Response{
		Persona: pers.Name,
		TraceID: uuid.NewString(),
	}
	resp.trace(StageReceived, "domain "+req.Domain+", persona "+pers.Name)

	if pers.Source == persona.SourceDirect {
		pl.executeDirect(ctx, req, resp)
		resp.ProcessingTimeMS = pl.now().Sub(start).Milliseconds()
		return resp, nil
	}

	// MEMORY_LOAD
	memory := pl.loadMemory(req, dc, resp)

	// PATTERN_OVERRIDE_CHECK
	contextBlock, overridden := pl.checkPatternOverride(ctx, req, dc, resp)

	// DATA_SOURCE_FETCH, only when patterns did not short-circuit it.
	if overridden {
		resp.Source = SourcePatternsOverride
	} else {
		contextBlock = pl.fetchDataSource(ctx, req, dc, pers, resp)
	}

	// PROMPT_ASSEMBLY
	prompt := assemblePrompt(dc.RoleContext, memory, contextBlock,
		pers.ShowReasoning || req.ShowThinking, req.Query)
	resp.trace(StagePromptAssembly, "assembled prompt")

	// LLM_INVOKE
	answer := pl.invoke(ctx, req.Domain, dc, pers, prompt, resp)
	resp.Response = answer

	// ARCHIVE_APPEND happens even when the invoke stage produced an error
	// response, so the conversational record stays complete.
	if pl.archive != nil {
		pl.archive.Append(req.Domain, req.Query, answer)
		resp.trace(StageArchiveAppend, "archived exchange")
	}

	// RESPONSE
	resp.Confidence = pl.estimateConfidence(resp)
	resp.ProcessingTimeMS = pl.now().Sub(start).Milliseconds()
	resp.trace(StageResponse, "source "+resp.Source)
	return resp, nil
}

// loadMemory stages recent archive content as a context prefix when the
// domain's memory configuration calls for it.
func (pl *Pipeline) loadMemory(req Request, dc *config.DomainConfig, resp *Response) string {
	if !dc.Memory.Enabled || pl.archive == nil {
		return ""
	}

	switch dc.Memory.Mode {
	case "all":
	case "triggers":
		if !containsTrigger(req.Query, dc.Memory.TriggerPhrases) {
			resp.trace(StageMemoryLoad, "no trigger phrase matched")
			return ""
		}
	default:
		return ""
	}

	memory := pl.archive.LoadRecent(req.Domain, dc.Memory.MaxContextChars)
	if memory == "" {
		resp.trace(StageMemoryLoad, "no archived history")
		return ""
	}
	resp.trace(StageMemoryLoad, "loaded recent history")
	return memory
}

// checkPatternOverride runs the domain's semantic pattern search. A non-empty
// match set becomes the sole context source and short-circuits the persona's
// own data source.
func (pl *Pipeline) checkPatternOverride(ctx context.Context, req Request, dc *config.DomainConfig, resp *Response) (string, bool) {
	if !dc.PatternsEnabled || req.SkipPatterns || pl.patterns == nil {
		return "", false
	}

	matches, err := pl.patterns.Search(ctx, req.Domain, req.Query, defaultPatternResults)
	if err != nil {
		resp.traceError(StagePatternCheck, "pattern search failed: "+err.Error())
		return "", false
	}
	if len(matches) == 0 {
		resp.trace(StagePatternCheck, "no patterns matched")
		return "", false
	}

	for _, m := range matches {
		resp.PatternsUsed = append(resp.PatternsUsed, m.Pattern.ID)
	}
	resp.topPatternConfidence = matches[0].Pattern.Confidence
	resp.trace(StagePatternCheck, "pattern override engaged")
	return formatPatternContext(matches), true
}

// fetchDataSource dispatches on the persona's tagged source variant. Any
// failure degrades to no-context generation.
func (pl *Pipeline) fetchDataSource(ctx context.Context, req Request, dc *config.DomainConfig, pers persona.Persona, resp *Response) string {
	switch pers.Source {
	case persona.SourceVoid:
		resp.Source = SourceVoid
		return ""

	case persona.SourceLibrary:
		resp.Source = SourceLibrary
		if pl.library == nil || dc.LibraryPath == "" {
			resp.trace(StageFetch, "no document library configured")
			return ""
		}
		docs, contextBlock, err := pl.library.Query(ctx, req.Domain, dc.LibraryPath, req.Query, defaultDocumentResults)
		if err != nil {
			resp.traceError(StageFetch, "document search failed: "+err.Error())
			return ""
		}
		for _, d := range docs {
			resp.DocumentsUsed = append(resp.DocumentsUsed, DocumentRef{Path: d.Path, Score: d.Score})
		}
		resp.trace(StageFetch, "document search returned results")
		return contextBlock

	case persona.SourceInternet:
		resp.Source = SourceInternet
		if pl.web == nil || !dc.WebSearch {
			resp.trace(StageFetch, "web search not enabled")
			return ""
		}
		wctx, cancel := context.WithTimeout(ctx, webSearchTimeout)
		defer cancel()
		results, err := pl.web.Search(wctx, req.Query, defaultWebResults)
		if err != nil {
			resp.traceError(StageFetch, "web search failed: "+err.Error())
			return ""
		}
		for _, r := range results {
			resp.WebSources = append(resp.WebSources, WebSource{Title: r.Title, URL: r.URL})
		}
		resp.trace(StageFetch, "web search returned results")
		return formatWebContext(results)

	default:
		// SourceDirect never reaches here; executeDirect handles it.
		resp.Source = SourceVoid
		return ""
	}
}

// invoke calls the LLM provider. Every failure becomes a structured error
// response so the archive append still records the exchange.
func (pl *Pipeline) invoke(ctx context.Context, domain string, dc *config.DomainConfig, pers persona.Persona, prompt string, resp *Response) string {
	if pl.providers == nil {
		resp.traceError(StageLLMInvoke, "no provider configured")
		return llmError("no provider configured")
	}

	prov, model, err := pl.providers.Resolve(domain)
	if err != nil {
		resp.traceError(StageLLMInvoke, "provider resolution failed: "+err.Error())
		return llmError(err.Error())
	}

	temperature := pers.Temperature
	if dc.Temperature != nil {
		temperature = *dc.Temperature
	}

	answer, err := prov.Complete(ctx, provider.Request{
		Model:       model,
		System:      dc.RoleContext,
		Prompt:      prompt,
		Temperature: temperature,
	})
	if err != nil {
		slog.Warn("llm completion failed", "domain", domain, "provider", prov.Name(), "error", err)
		resp.traceError(StageLLMInvoke, "completion failed: "+err.Error())
		return llmError(err.Error())
	}

	resp.trace(StageLLMInvoke, "completion via "+prov.Name())
	return answer
}

// estimateConfidence is a coarse heuristic over the source and its yield:
// pattern overrides inherit the top pattern's own confidence, populated data
// sources score above empty ones, and an LLM error floors the estimate.
func (pl *Pipeline) estimateConfidence(resp *Response) float64 {
	if strings.HasPrefix(resp.Response, "[LLM Error:") {
		return 0
	}

	switch resp.Source {
	case SourcePatternsOverride:
		return 0.6 + 0.3*pl.topPatternConfidence(resp)
	case SourceLibrary:
		if len(resp.DocumentsUsed) > 0 {
			return 0.6
		}
		return 0.3
	case SourceInternet:
		if len(resp.WebSources) > 0 {
			return 0.6
		}
		return 0.3
	default:
		return 0.5
	}
}

func (pl *Pipeline) topPatternConfidence(resp *Response) float64 {
	if len(resp.PatternsUsed) == 0 {
		return 0
	}
	// The trace only keeps IDs; re-resolving the top hit would race with
	// concurrent updates, so the override stage stashes the value.
	return resp.topPatternConfidence
}

func containsTrigger(query string, phrases []string) bool {
	lowered := strings.ToLower(query)
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func llmError(detail string) string {
	return "[LLM Error: " + detail + "]"
}

func (r *Response) trace(stage, note string) {
	r.Trace = append(r.Trace, TraceEntry{Stage: stage, Note: note})
}

func (r *Response) traceError(stage, note string) {
	r.Trace = append(r.Trace, TraceEntry{Stage: stage, Note: note, Error: true})
}
