// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package library_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageway/sage/internal/embed"
	"github.com/sageway/sage/internal/index"
	"github.com/sageway/sage/internal/library"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSearch_QueryRanksDocuments(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	writeDoc(t, docs, "faucet.md", "How to fix a leaking kitchen faucet: replace the washer and tighten the valve seat.")
	writeDoc(t, docs, "birds.txt", "Arctic terns migrate farther than any other bird species on the planet.")

	s := library.NewSearch("file", t.TempDir(), embed.NewHashingEmbedder(64), 0.1)

	results, context_, err := s.Query(ctx, "home", docs, "fix leaking kitchen faucet", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "faucet.md", results[0].Path)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Contains(t, context_, "[faucet.md]")
	assert.Contains(t, context_, "replace the washer")
}

func TestSearch_MissingLibraryIsEmpty(t *testing.T) {
	s := library.NewSearch("file", t.TempDir(), embed.NewHashingEmbedder(64), 0)

	results, context_, err := s.Query(context.Background(), "home",
		filepath.Join(t.TempDir(), "does-not-exist"), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, context_)
}

func TestSearch_SkipsUnsupportedFiles(t *testing.T) {
	ctx := context.Background()
	docs := t.TempDir()
	writeDoc(t, docs, "notes.txt", "succulents need infrequent watering")
	writeDoc(t, docs, "image.png", "\x89PNG binary junk")

	s := library.NewSearch("file", t.TempDir(), embed.NewHashingEmbedder(64), -1)

	results, _, err := s.Query(ctx, "plants", docs, "watering succulents", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes.txt", results[0].Path)
}

// rendezvousIndex completes a Search only once a second Search is in flight
// on the same instance, so serialized reads would block instead of pairing up.
type rendezvousIndex struct {
	arrived chan struct{}
}

func (r *rendezvousIndex) Upsert(context.Context, string, string) error { return nil }

func (r *rendezvousIndex) Search(context.Context, string, int, float64) ([]index.Result, error) {
	select {
	case r.arrived <- struct{}{}:
	case <-r.arrived:
	}
	return []index.Result{}, nil
}

func (r *rendezvousIndex) Remove(context.Context, string) error { return nil }
func (r *rendezvousIndex) Len() int                             { return 0 }
func (r *rendezvousIndex) Close() error                         { return nil }

func TestSearch_ReadsWithinDomainRunConcurrently(t *testing.T) {
	index.RegisterBackend("rendezvous", func(embed.Embedder, string) (index.Index, error) {
		return &rendezvousIndex{arrived: make(chan struct{})}, nil
	})

	s := library.NewSearch("rendezvous", t.TempDir(), embed.NewHashingEmbedder(64), 0)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := s.Query(context.Background(), "home", "", "sauce", 3)
			done <- err
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("queries did not overlap; search appears serialized with sync")
		}
	}
}
