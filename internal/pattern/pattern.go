// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package pattern

import (
	"fmt"
	"regexp"
	"time"

	sageerr "github.com/sageway/sage/pkg/errors"
)

// Category classifies what kind of knowledge a pattern captures.
type Category string

const (
	CategoryTroubleshooting Category = "troubleshooting"
	CategoryProcedure       Category = "procedure"
	CategorySubstitution    Category = "substitution"
	CategoryDecision        Category = "decision"
	CategoryDiagnostic      Category = "diagnostic"
	CategoryPreparation     Category = "preparation"
	CategoryOptimization    Category = "optimization"
	CategoryPrinciple       Category = "principle"

	// CategoryJournalEntry marks patterns captured verbatim from
	// conversation turns under the direct persona; they are queryable like
	// any other pattern but are never created through the admin path.
	CategoryJournalEntry Category = "journal_entry"
)

var knownCategories = map[Category]bool{
	CategoryTroubleshooting: true,
	CategoryProcedure:       true,
	CategorySubstitution:    true,
	CategoryDecision:        true,
	CategoryDiagnostic:      true,
	CategoryPreparation:     true,
	CategoryOptimization:    true,
	CategoryPrinciple:       true,
	CategoryJournalEntry:    true,
}

// Pattern is a domain-scoped problem/solution knowledge record.
//
// Relationship ID fields are soft references: they should point at patterns
// in the same domain, but dangling references are tolerated rather than
// rejected so bulk ingestion and deletes never cascade.
type Pattern struct {
	ID       string   `json:"id"`
	Domain   string   `json:"domain"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Problem  string   `json:"problem"`
	Solution string   `json:"solution"`

	Steps   []string          `json:"steps,omitempty"`
	Effects map[string]string `json:"effects,omitempty"`

	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
	Sources    []string `json:"sources,omitempty"`

	Related       []string `json:"related,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Alternatives  []string `json:"alternatives,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AccessCount int64     `json:"access_count"`
}

// idSuffixRe matches the sequence portion of a pattern ID.
var idSuffixRe = regexp.MustCompile(`^[0-9]{3,}$`)

// FormatID builds the canonical pattern ID for a domain and sequence number.
func FormatID(domain string, seq int) string {
	return fmt.Sprintf("%s_%03d", domain, seq)
}

// ValidateID checks that id follows the {domain}_{seq:03d} format for the
// given domain.
func ValidateID(domain, id string) error {
	prefix := domain + "_"
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return sageerr.Errorf(sageerr.CodePatternValidateInvalid,
			"pattern id %q must start with %q", id, prefix)
	}
	if !idSuffixRe.MatchString(id[len(prefix):]) {
		return sageerr.Errorf(sageerr.CodePatternValidateInvalid,
			"pattern id %q must end with a zero-padded sequence number", id)
	}
	return nil
}

// Validate checks field invariants. It does not verify relationship
// references; those are soft by design.
func (p *Pattern) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return sageerr.Errorf(sageerr.CodePatternValidateInvalid,
			"confidence must be in [0,1], got %g", p.Confidence)
	}
	if p.Category != "" && !knownCategories[p.Category] {
		return sageerr.Errorf(sageerr.CodePatternValidateInvalid,
			"unknown pattern category %q", p.Category)
	}
	return nil
}

// SearchText returns the text the semantic index embeds for this pattern.
func (p *Pattern) SearchText() string {
	if p.Problem == "" {
		return p.Solution
	}
	if p.Solution == "" {
		return p.Problem
	}
	return p.Problem + "\n" + p.Solution
}
