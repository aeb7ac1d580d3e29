// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package pipeline

import (
	"context"
	"strings"

	"github.com/sageway/sage/internal/pattern"
)

// journalQueryPrefix marks a query as a journal search instead of a capture.
const journalQueryPrefix = "**"

// journalTimeFormat prefixes captured entries; minute precision keeps
// entries readable while staying sortable.
const journalTimeFormat = "2006-01-02 15:04"

// executeDirect handles the direct persona: no LLM is involved. A plain
// query is timestamped and captured verbatim as a journal-entry pattern; a
// "**"-prefixed query searches existing journal entries semantically and
// synthesizes an answer from the hits. Both paths archive the exchange.
func (pl *Pipeline) executeDirect(ctx context.Context, req Request, resp *Response) {
	resp.Source = SourceDirect

	query := strings.TrimSpace(req.Query)
	if rest, ok := strings.CutPrefix(query, journalQueryPrefix); ok {
		resp.Response = pl.searchJournal(ctx, req.Domain, strings.TrimSpace(rest), resp)
	} else {
		resp.Response = pl.captureJournal(ctx, req.Domain, query, resp)
	}

	if pl.archive != nil {
		pl.archive.Append(req.Domain, req.Query, resp.Response)
		resp.trace(StageArchiveAppend, "archived exchange")
	}
	resp.Confidence = 1
	resp.trace(StageResponse, "source "+resp.Source)
}

// captureJournal stores the query verbatim as a journal-entry pattern and
// echoes it back with a timestamp. A store failure still echoes; the entry
// is then only in the archive.
func (pl *Pipeline) captureJournal(ctx context.Context, domain, text string, resp *Response) string {
	stamped := "[" + pl.now().Format(journalTimeFormat) + "] " + text

	if pl.patterns == nil {
		resp.traceError(StageFetch, "no pattern store, journal entry not captured")
		return stamped
	}

	p, err := pl.patterns.Create(ctx, domain, &pattern.Pattern{
		Name:       stamped,
		Category:   pattern.CategoryJournalEntry,
		Solution:   text,
		Confidence: 1,
	})
	if err != nil {
		resp.traceError(StageFetch, "capturing journal entry failed: "+err.Error())
		return stamped
	}

	resp.PatternsUsed = append(resp.PatternsUsed, p.ID)
	resp.trace(StageFetch, "captured journal entry "+p.ID)
	return stamped
}

// searchJournal answers a prefixed query from stored journal entries.
func (pl *Pipeline) searchJournal(ctx context.Context, domain, query string, resp *Response) string {
	if pl.patterns == nil {
		return "No journal entries found."
	}

	matches, err := pl.patterns.Search(ctx, domain, query, defaultPatternResults)
	if err != nil {
		resp.traceError(StageFetch, "journal search failed: "+err.Error())
		return "No journal entries found."
	}

	var b strings.Builder
	for _, m := range matches {
		if m.Pattern.Category != pattern.CategoryJournalEntry {
			continue
		}
		resp.PatternsUsed = append(resp.PatternsUsed, m.Pattern.ID)
		b.WriteString(m.Pattern.Name)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		resp.trace(StageFetch, "no journal entries matched")
		return "No journal entries found."
	}

	resp.trace(StageFetch, "journal search returned entries")
	return strings.TrimSpace(b.String())
}
