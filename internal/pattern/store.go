// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package pattern

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sageway/sage/internal/embed"
	"github.com/sageway/sage/internal/index"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// defaultMinSimilarity is the semantic search threshold used when the store
// config leaves it unset.
const defaultMinSimilarity = 0.35

// StoreConfig controls pattern persistence and semantic search.
type StoreConfig struct {
	// Dir is the base data directory; each domain gets Dir/<domain>/.
	Dir string
	// IndexBackend selects the vector index backend ("file" default).
	IndexBackend string
	// MinSimilarity is the semantic search score floor.
	MinSimilarity float64
}

// Match pairs a pattern with its semantic similarity score. Degraded-mode
// results (storage-order fallback) carry a zero score.
type Match struct {
	Pattern *Pattern
	Score   float64
}

// Store is the per-domain pattern collection: an ordered list of Pattern
// records persisted as one JSON file per domain, with a companion embedding
// cache for semantic search.
//
// All mutations on one domain serialize on that domain's lock; the whole
// per-domain file is the critical section. Different domains never contend.
type Store struct {
	cfg      StoreConfig
	embedder embed.Embedder

	mu      sync.Mutex
	domains map[string]*domainState
}

type domainState struct {
	mu       sync.Mutex
	patterns []*Pattern
	index    index.Index
}

// NewStore creates a Store rooted at cfg.Dir.
func NewStore(cfg StoreConfig, embedder embed.Embedder) *Store {
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = defaultMinSimilarity
	}
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		domains:  make(map[string]*domainState),
	}
}

// List returns all patterns in the domain in insertion order.
func (s *Store) List(ctx context.Context, domain string) ([]*Pattern, error) {
	ds, err := s.domain(domain)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	out := make([]*Pattern, len(ds.patterns))
	copy(out, ds.patterns)
	return out, nil
}

// Get returns the pattern with the given ID and bumps its access counter.
func (s *Store) Get(ctx context.Context, domain, id string) (*Pattern, error) {
	ds, err := s.domain(domain)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	p := findLocked(ds, id)
	if p == nil {
		return nil, sageerr.New(sageerr.CodePatternGetNotFound,
			"pattern not found: "+id, sageerr.FieldDomain(domain), sageerr.FieldPattern(id))
	}

	s.touchLocked(ds, domain, p)
	return p, nil
}

// Create adds a pattern to the domain. An empty ID is assigned the next
// sequential ID; an explicit ID must follow the domain_{seq} format and must
// not collide with an existing pattern.
func (s *Store) Create(ctx context.Context, domain string, p *Pattern) (*Pattern, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ds, err := s.domain(domain)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if p.ID == "" {
		p.ID = FormatID(domain, nextSeqLocked(ds, domain))
	} else {
		if err := ValidateID(domain, p.ID); err != nil {
			return nil, err
		}
		if findLocked(ds, p.ID) != nil {
			return nil, sageerr.New(sageerr.CodePatternCreateConflict,
				"pattern id already exists: "+p.ID,
				sageerr.FieldDomain(domain), sageerr.FieldPattern(p.ID))
		}
	}

	now := time.Now().UTC()
	p.Domain = domain
	p.CreatedAt = now
	p.UpdatedAt = now

	ds.patterns = append(ds.patterns, p)
	if err := s.persistLocked(ds, domain); err != nil {
		ds.patterns = ds.patterns[:len(ds.patterns)-1]
		return nil, err
	}

	s.reindexOneLocked(ctx, ds, p)
	return p, nil
}

// Update applies non-nil fields to the pattern with the given ID.
func (s *Store) Update(ctx context.Context, domain, id string, upd Update) (*Pattern, error) {
	ds, err := s.domain(domain)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	p := findLocked(ds, id)
	if p == nil {
		return nil, sageerr.New(sageerr.CodePatternGetNotFound,
			"pattern not found: "+id, sageerr.FieldDomain(domain), sageerr.FieldPattern(id))
	}

	updated := *p
	upd.apply(&updated)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	*p = updated
	if err := s.persistLocked(ds, domain); err != nil {
		return nil, err
	}

	s.reindexOneLocked(ctx, ds, p)
	return p, nil
}

// Delete removes the pattern with the given ID. This is the explicit admin
// operation; the journal-capture path never deletes.
func (s *Store) Delete(ctx context.Context, domain, id string) error {
	ds, err := s.domain(domain)
	if err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	for i, p := range ds.patterns {
		if p.ID != id {
			continue
		}
		ds.patterns = append(ds.patterns[:i], ds.patterns[i+1:]...)
		if err := s.persistLocked(ds, domain); err != nil {
			return err
		}
		if ds.index != nil {
			if err := ds.index.Remove(ctx, id); err != nil {
				slog.Warn("removing pattern from index failed", "domain", domain, "pattern_id", id, "error", err)
			}
		}
		return nil
	}

	return sageerr.New(sageerr.CodePatternGetNotFound,
		"pattern not found: "+id, sageerr.FieldDomain(domain), sageerr.FieldPattern(id))
}

// Search ranks the domain's patterns against queryText by embedding
// similarity. When no embeddings exist yet (index empty), it falls back to
// the first maxResults patterns in storage order — a documented degraded
// mode, not an error. Hits get their access counter bumped best-effort.
func (s *Store) Search(ctx context.Context, domain, queryText string, maxResults int) ([]Match, error) {
	ds, err := s.domain(domain)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.index == nil || ds.index.Len() == 0 {
		return s.fallbackLocked(ds, domain, maxResults), nil
	}

	results, err := ds.index.Search(ctx, queryText, maxResults, s.cfg.MinSimilarity)
	if err != nil {
		slog.Warn("pattern index search failed, falling back to storage order",
			"domain", domain, "error", err)
		return s.fallbackLocked(ds, domain, maxResults), nil
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		p := findLocked(ds, r.ID)
		if p == nil {
			continue // index entry for a deleted pattern
		}
		s.touchLocked(ds, domain, p)
		matches = append(matches, Match{Pattern: p, Score: r.Score})
	}
	return matches, nil
}

// Reindex regenerates embedding cache entries for every pattern in the
// domain. Entries whose content hash is unchanged are skipped by the index.
func (s *Store) Reindex(ctx context.Context, domain string) error {
	ds, err := s.domain(domain)
	if err != nil {
		return err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.index == nil {
		return nil
	}
	for _, p := range ds.patterns {
		if err := ds.index.Upsert(ctx, p.ID, p.SearchText()); err != nil {
			return err
		}
	}
	return nil
}

// Update describes a partial pattern mutation; nil fields are unchanged.
type Update struct {
	Name          *string
	Category      *Category
	Problem       *string
	Solution      *string
	Steps         []string
	Effects       map[string]string
	Confidence    *float64
	Tags          []string
	Sources       []string
	Related       []string
	Prerequisites []string
	Alternatives  []string
}

func (u Update) apply(p *Pattern) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Problem != nil {
		p.Problem = *u.Problem
	}
	if u.Solution != nil {
		p.Solution = *u.Solution
	}
	if u.Steps != nil {
		p.Steps = u.Steps
	}
	if u.Effects != nil {
		p.Effects = u.Effects
	}
	if u.Confidence != nil {
		p.Confidence = *u.Confidence
	}
	if u.Tags != nil {
		p.Tags = u.Tags
	}
	if u.Sources != nil {
		p.Sources = u.Sources
	}
	if u.Related != nil {
		p.Related = u.Related
	}
	if u.Prerequisites != nil {
		p.Prerequisites = u.Prerequisites
	}
	if u.Alternatives != nil {
		p.Alternatives = u.Alternatives
	}
}

// --- internals ---

// domain returns (lazily creating) the state for a domain, loading the
// pattern file and opening the embedding index on first use.
func (s *Store) domain(domain string) (*domainState, error) {
	if domain == "" {
		return nil, sageerr.New(sageerr.CodePatternValidateInvalid, "domain must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.domains[domain]; ok {
		return ds, nil
	}

	ds := &domainState{}

	raw, err := os.ReadFile(s.patternPath(domain))
	switch {
	case os.IsNotExist(err):
		// New domain; file created on first write.
	case err != nil:
		return nil, sageerr.Wrapf(err, sageerr.CodePatternStorageFailure,
			"reading pattern file for domain %s", domain)
	default:
		if err := json.Unmarshal(raw, &ds.patterns); err != nil {
			return nil, sageerr.Wrapf(err, sageerr.CodePatternStorageFailure,
				"decoding pattern file for domain %s", domain)
		}
	}

	idx, err := index.Open(s.cfg.IndexBackend, s.embedder, s.indexPath(domain))
	if err != nil {
		// Semantic search is an enrichment; the store still works degraded.
		slog.Warn("opening pattern index failed, semantic search degraded",
			"domain", domain, "error", err)
	} else {
		ds.index = idx
	}

	s.domains[domain] = ds
	return ds, nil
}

func (s *Store) patternPath(domain string) string {
	return filepath.Join(s.cfg.Dir, domain, "patterns.json")
}

func (s *Store) indexPath(domain string) string {
	return filepath.Join(s.cfg.Dir, domain, "patterns.embeddings.json")
}

// persistLocked writes the domain's pattern list atomically. Caller holds ds.mu.
func (s *Store) persistLocked(ds *domainState, domain string) error {
	raw, err := json.MarshalIndent(ds.patterns, "", "  ")
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodePatternEncodeFailure,
			"encoding patterns for domain %s", domain)
	}

	path := s.patternPath(domain)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sageerr.Wrapf(err, sageerr.CodePatternStorageFailure,
			"creating domain directory for %s", domain)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return sageerr.Wrapf(err, sageerr.CodePatternStorageFailure,
			"writing pattern file for domain %s", domain)
	}
	if err := os.Rename(tmp, path); err != nil {
		return sageerr.Wrapf(err, sageerr.CodePatternStorageFailure,
			"replacing pattern file for domain %s", domain)
	}
	return nil
}

// touchLocked bumps the access counter and persists best-effort; a counter
// write failure never fails the read that triggered it.
func (s *Store) touchLocked(ds *domainState, domain string, p *Pattern) {
	p.AccessCount++
	if err := s.persistLocked(ds, domain); err != nil {
		slog.Warn("persisting access counter failed", "domain", domain, "pattern_id", p.ID, "error", err)
	}
}

// reindexOneLocked upserts one pattern into the domain index best-effort.
func (s *Store) reindexOneLocked(ctx context.Context, ds *domainState, p *Pattern) {
	if ds.index == nil {
		return
	}
	if err := ds.index.Upsert(ctx, p.ID, p.SearchText()); err != nil {
		slog.Warn("indexing pattern failed", "domain", p.Domain, "pattern_id", p.ID, "error", err)
	}
}

func (s *Store) fallbackLocked(ds *domainState, domain string, maxResults int) []Match {
	n := len(ds.patterns)
	if n > maxResults {
		n = maxResults
	}
	matches := make([]Match, 0, n)
	for _, p := range ds.patterns[:n] {
		s.touchLocked(ds, domain, p)
		matches = append(matches, Match{Pattern: p})
	}
	return matches
}

func findLocked(ds *domainState, id string) *Pattern {
	for _, p := range ds.patterns {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func nextSeqLocked(ds *domainState, domain string) int {
	seq := 0
	prefix := domain + "_"
	for _, p := range ds.patterns {
		if len(p.ID) <= len(prefix) || p.ID[:len(prefix)] != prefix {
			continue
		}
		var n int
		for _, c := range p.ID[len(prefix):] {
			if c < '0' || c > '9' {
				n = -1
				break
			}
			n = n*10 + int(c-'0')
		}
		if n > seq {
			seq = n
		}
	}
	return seq + 1
}
