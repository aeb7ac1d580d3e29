// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package index

import (
	"sync"

	"github.com/sageway/sage/internal/embed"
	sageerr "github.com/sageway/sage/pkg/errors"
)

// Factory creates an Index for one domain/kind cache location.
// path is the cache file location derived by the caller (the sqlite backend
// appends its own extension).
type Factory func(embedder embed.Embedder, path string) (Index, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a named index backend. Backend packages call
// this from init(). Goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func init() {
	RegisterBackend("file", func(embedder embed.Embedder, path string) (Index, error) {
		return NewFileIndex(embedder, path)
	})
}

// Open creates an Index using the named backend, defaulting to "file".
func Open(backend string, embedder embed.Embedder, path string) (Index, error) {
	if backend == "" {
		backend = "file"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sageerr.Errorf(sageerr.CodeIndexBackendUnsupported, "unsupported index backend: %q", backend)
	}

	return factory(embedder, path)
}
