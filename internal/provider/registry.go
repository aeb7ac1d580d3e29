// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package provider

import (
	"strings"
	"sync"

	sageerr "github.com/sageway/sage/pkg/errors"
)

// Registry manages provider registration and lookup. Model references use
// the "provider/model" format; a per-domain override beats the default.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string
	overrides  map[string]string // domain → "provider/model"
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		overrides: make(map[string]string),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, sageerr.New(sageerr.CodeProviderNotFound,
			"provider not found: "+name, sageerr.FieldProvider(name))
	}
	return p, nil
}

// SetDefault sets the default "provider/model" reference. The provider
// portion must be registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.providers[provName]; !ok {
		return sageerr.New(sageerr.CodeProviderNotFound,
			"SetDefault: provider not registered: "+provName,
			sageerr.FieldProvider(provName))
	}
	r.defaultRef = ref
	return nil
}

// SetOverride sets a domain-specific "provider/model" override.
func (r *Registry) SetOverride(domain, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.providers[provName]; !ok {
		return sageerr.New(sageerr.CodeProviderNotFound,
			"SetOverride: provider not registered: "+provName,
			sageerr.FieldProvider(provName))
	}
	r.overrides[domain] = ref
	return nil
}

// Resolve selects the provider and model for a domain: the domain override
// when present, otherwise the default.
func (r *Registry) Resolve(domain string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref := r.defaultRef
	if override, ok := r.overrides[domain]; ok {
		ref = override
	}
	if ref == "" {
		return nil, "", sageerr.New(sageerr.CodeProviderNoDefault,
			"no default provider configured")
	}

	provName, model := parseRef(ref)
	p, ok := r.providers[provName]
	if !ok {
		return nil, "", sageerr.New(sageerr.CodeProviderNotFound,
			"provider not found: "+provName, sageerr.FieldProvider(provName))
	}
	return p, model, nil
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return sageerr.Join(errs...)
	}
	return nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
