// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package persona defines the fixed behavioral profiles a domain can adopt
// and the data source each profile consults.
package persona

import (
	sageerr "github.com/sageway/sage/pkg/errors"
)

// Source is the tagged data-source variant a persona draws context from.
// The pipeline's fetch stage switches exhaustively over these values.
type Source string

const (
	// SourceVoid fetches nothing: pure generation.
	SourceVoid Source = "void"
	// SourceLibrary searches the domain's local document library.
	SourceLibrary Source = "library"
	// SourceInternet queries the external web-search collaborator.
	SourceInternet Source = "internet"
	// SourceDirect bypasses the LLM entirely: queries are echoed into the
	// journal, and prefixed queries are answered from stored journal entries.
	SourceDirect Source = "direct"
)

// Persona is an immutable behavioral profile. Instances are created once at
// process start and shared read-only across all queries.
type Persona struct {
	Name          string
	Source        Source
	ShowReasoning bool
	Temperature   float32
}

// Registry holds the fixed persona set. Construct with NewRegistry; the
// zero value resolves nothing.
type Registry struct {
	personas map[string]Persona
}

// NewRegistry builds the registry with the four built-in personas.
func NewRegistry() *Registry {
	r := &Registry{personas: make(map[string]Persona)}
	for _, p := range []Persona{
		{Name: "poet", Source: SourceVoid, ShowReasoning: false, Temperature: 0.9},
		{Name: "librarian", Source: SourceLibrary, ShowReasoning: true, Temperature: 0.2},
		{Name: "researcher", Source: SourceInternet, ShowReasoning: true, Temperature: 0.5},
		{Name: "journal", Source: SourceDirect, ShowReasoning: false, Temperature: 0},
	} {
		r.personas[p.Name] = p
	}
	return r
}

// Resolve returns the persona with the given name.
func (r *Registry) Resolve(name string) (Persona, error) {
	p, ok := r.personas[name]
	if !ok {
		return Persona{}, sageerr.New(sageerr.CodePersonaNotFound,
			"unknown persona: "+name, sageerr.FieldPersona(name))
	}
	return p, nil
}

// Names returns the registered persona names, primarily for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	return names
}
