// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package pipeline

import (
	"strings"

	"github.com/sageway/sage/internal/pattern"
	"github.com/sageway/sage/internal/websearch"
)

// reasoningSuffix is appended when the persona (or the request) asks for
// visible reasoning.
const reasoningSuffix = "Show your reasoning step by step before giving the final answer."

// assemblePrompt concatenates the prompt sections in their fixed order:
// role context, memory prefix, context block, reasoning request, query.
// Empty sections are skipped without leaving blank runs.
func assemblePrompt(roleContext, memory, contextBlock string, showReasoning bool, query string) string {
	var sections []string

	if roleContext != "" {
		sections = append(sections, roleContext)
	}
	if memory != "" {
		sections = append(sections, "Recent conversation history:\n"+memory)
	}
	if contextBlock != "" {
		sections = append(sections, "Relevant context:\n"+contextBlock)
	}
	if showReasoning {
		sections = append(sections, reasoningSuffix)
	}
	sections = append(sections, "Question: "+query)

	return strings.Join(sections, "\n\n")
}

// formatPatternContext renders matched patterns as a prompt context block.
func formatPatternContext(matches []pattern.Match) string {
	var b strings.Builder
	for _, m := range matches {
		p := m.Pattern
		b.WriteString("[" + p.ID + "]")
		if p.Name != "" {
			b.WriteString(" " + p.Name)
		}
		b.WriteString("\n")
		if p.Problem != "" {
			b.WriteString("Problem: " + p.Problem + "\n")
		}
		if p.Solution != "" {
			b.WriteString("Solution: " + p.Solution + "\n")
		}
		for _, step := range p.Steps {
			b.WriteString("- " + step + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// formatWebContext renders web search hits as titled, sourced snippets.
func formatWebContext(results []websearch.Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Title + " (" + r.URL + ")\n")
		if r.Snippet != "" {
			b.WriteString(r.Snippet + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
