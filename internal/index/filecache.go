// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sageway/sage/internal/embed"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// Compile-time interface check.
var _ Index = (*FileIndex)(nil)

// FileIndex is the default Index implementation: an in-memory brute-force
// cosine index persisted as a JSON cache keyed by content hash. Reload
// reconstructs identical ordering for identical queries.
type FileIndex struct {
	mu       sync.RWMutex
	embedder embed.Embedder
	path     string // empty = memory only (tests)

	entries map[string]*cacheEntry
	order   []string // insertion order, drives stable tie-breaking
}

type cacheEntry struct {
	Vector []float32 `json:"vector"`
	Hash   string    `json:"hash"`
}

// cacheFile is the JSON round-trip structure. The id list preserves
// insertion order, which map keys cannot.
type cacheFile struct {
	Model   string                 `json:"model"`
	IDs     []string               `json:"ids"`
	Entries map[string]*cacheEntry `json:"entries"`
}

// NewFileIndex creates a FileIndex backed by the JSON cache at path.
// An existing cache is loaded; entries generated by a different embedding
// model are dropped and will be regenerated on the next Upsert.
// An empty path keeps the index purely in memory.
func NewFileIndex(embedder embed.Embedder, path string) (*FileIndex, error) {
	idx := &FileIndex{
		embedder: embedder,
		path:     path,
		entries:  make(map[string]*cacheEntry),
	}

	if path == "" {
		return idx, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexLoadFailure, "reading embedding cache %s", path)
	}

	var file cacheFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexLoadFailure, "decoding embedding cache %s", path)
	}

	if file.Model != embedder.Model() {
		// Vectors from another model are incomparable; start fresh.
		return idx, nil
	}

	for _, id := range file.IDs {
		entry, ok := file.Entries[id]
		if !ok {
			continue
		}
		idx.entries[id] = entry
		idx.order = append(idx.order, id)
	}

	return idx, nil
}

// Upsert stores the embedding for id, skipping model inference when the
// stored content hash already matches.
func (x *FileIndex) Upsert(ctx context.Context, id, text string) error {
	hash := contentHash(text)

	x.mu.Lock()
	defer x.mu.Unlock()

	if existing, ok := x.entries[id]; ok && existing.Hash == hash {
		return nil
	}

	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexEmbedFailure, "embedding %s", id)
	}

	if _, ok := x.entries[id]; !ok {
		x.order = append(x.order, id)
	}
	x.entries[id] = &cacheEntry{Vector: vec, Hash: hash}

	return x.persistLocked()
}

// Search embeds the query and scans all entries in insertion order.
func (x *FileIndex) Search(ctx context.Context, queryText string, topK int, minSimilarity float64) ([]Result, error) {
	x.mu.RLock()
	empty := len(x.entries) == 0
	x.mu.RUnlock()
	if empty {
		return []Result{}, nil
	}

	query, err := x.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexEmbedFailure, "embedding query")
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]Result, 0, len(x.order))
	for _, id := range x.order {
		score := cosine(query, x.entries[id].Vector)
		if score >= minSimilarity {
			results = append(results, Result{ID: id, Score: score})
		}
	}

	// Stable sort keeps insertion order for exact score ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Remove drops the entry for id.
func (x *FileIndex) Remove(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.entries[id]; !ok {
		return nil
	}
	delete(x.entries, id)
	for i, existing := range x.order {
		if existing == id {
			x.order = append(x.order[:i], x.order[i+1:]...)
			break
		}
	}

	return x.persistLocked()
}

// Len reports the number of stored entries.
func (x *FileIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func (x *FileIndex) Close() error { return nil }

// persistLocked writes the cache file atomically. Caller holds x.mu.
func (x *FileIndex) persistLocked() error {
	if x.path == "" {
		return nil
	}

	file := cacheFile{
		Model:   x.embedder.Model(),
		IDs:     x.order,
		Entries: x.entries,
	}

	raw, err := json.Marshal(file)
	if err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexPersistFailure, "encoding embedding cache")
	}

	if err := os.MkdirAll(filepath.Dir(x.path), 0o755); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexPersistFailure, "creating cache directory")
	}

	tmp := x.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexPersistFailure, "writing embedding cache %s", tmp)
	}
	if err := os.Rename(tmp, x.path); err != nil {
		return sageerr.Wrapf(err, sageerr.CodeIndexPersistFailure, "replacing embedding cache %s", x.path)
	}
	return nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
