// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package library implements local document search for the librarian
// persona: plain-text documents under a domain's library path are indexed
// by embedding and ranked against the query.
package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sageway/sage/internal/embed"
	"github.com/sageway/sage/internal/index"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// snippetChars bounds how much of each matched document is quoted into the
// prompt context.
const snippetChars = 500

// defaultMinSimilarity is the document-search score floor; deliberately
// separate from (and lower than) the pattern-override threshold.
const defaultMinSimilarity = 0.15

// Document is one ranked library hit.
type Document struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Search ranks local documents for librarian-persona domains. One embedding
// index per domain, cached under the data directory; index regeneration for
// a domain is serialized while searches stay concurrent across domains.
type Search struct {
	embedder     embed.Embedder
	indexBackend string
	cacheDir     string
	minSim       float64

	mu      sync.Mutex
	domains map[string]*domainIndex
}

type domainIndex struct {
	mu  sync.Mutex
	idx index.Index
}

// NewSearch creates a Search whose per-domain index caches live under
// cacheDir. A non-positive minSimilarity selects the default.
func NewSearch(indexBackend, cacheDir string, embedder embed.Embedder, minSimilarity float64) *Search {
	if minSimilarity <= 0 {
		minSimilarity = defaultMinSimilarity
	}
	return &Search{
		embedder:     embedder,
		indexBackend: indexBackend,
		cacheDir:     cacheDir,
		minSim:       minSimilarity,
		domains:      make(map[string]*domainIndex),
	}
}

// Query syncs the domain's index against the documents under basePath and
// returns the top maxResults documents plus a formatted context block
// quoting their leading content. Missing or empty libraries yield empty
// results, not errors.
func (s *Search) Query(ctx context.Context, domain, basePath, query string, maxResults int) ([]Document, string, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	di, err := s.domain(domain)
	if err != nil {
		return nil, "", err
	}

	// Only the sync holds the domain lock; searches run concurrently on the
	// index's own read locking.
	di.mu.Lock()
	err = s.syncLocked(ctx, di, basePath)
	di.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	results, err := di.idx.Search(ctx, query, maxResults, s.minSim)
	if err != nil {
		return nil, "", sageerr.Wrapf(err, sageerr.CodeLibraryScanFailure,
			"searching library for domain %s", domain)
	}

	docs := make([]Document, 0, len(results))
	var b strings.Builder
	for _, r := range results {
		docs = append(docs, Document{Path: r.ID, Score: r.Score})

		raw, err := os.ReadFile(filepath.Join(basePath, r.ID))
		if err != nil {
			continue
		}
		snippet := string(raw)
		if len(snippet) > snippetChars {
			snippet = snippet[:snippetChars]
		}
		b.WriteString("[" + r.ID + "]\n")
		b.WriteString(strings.TrimSpace(snippet))
		b.WriteString("\n\n")
	}

	return docs, strings.TrimSpace(b.String()), nil
}

// syncLocked upserts every indexable document under basePath. Unchanged
// content is skipped by the index's hash check, so repeat syncs are cheap.
func (s *Search) syncLocked(ctx context.Context, di *domainIndex, basePath string) error {
	if basePath == "" {
		return nil
	}

	err := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexable(path) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		return di.idx.Upsert(ctx, rel, string(raw))
	})
	if err != nil && !os.IsNotExist(err) {
		return sageerr.Wrapf(err, sageerr.CodeLibraryScanFailure, "scanning library %s", basePath)
	}
	return nil
}

func (s *Search) domain(domain string) (*domainIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if di, ok := s.domains[domain]; ok {
		return di, nil
	}

	idx, err := index.Open(s.indexBackend, s.embedder,
		filepath.Join(s.cacheDir, domain, "documents.embeddings.json"))
	if err != nil {
		return nil, err
	}

	di := &domainIndex{idx: idx}
	s.domains[domain] = di
	return di, nil
}

func indexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".rst":
		return true
	}
	return false
}
