// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_AppendAndLoadRecentOrder(t *testing.T) {
	a := New(t.TempDir())

	for i := 1; i <= 3; i++ {
		a.Append("notes", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	content := a.LoadRecent("notes", 0)
	for i := 1; i <= 3; i++ {
		assert.Contains(t, content, fmt.Sprintf("Q: question %d", i))
		assert.Contains(t, content, fmt.Sprintf("A: answer %d", i))
	}

	// Submission order is preserved in the log.
	assert.Less(t,
		strings.Index(content, "question 1"),
		strings.Index(content, "question 2"))
	assert.Less(t,
		strings.Index(content, "question 2"),
		strings.Index(content, "question 3"))
}

func TestArchive_LoadRecentMissing(t *testing.T) {
	a := New(t.TempDir())
	assert.Empty(t, a.LoadRecent("nope", 1000))
}

func TestArchive_TruncationKeepsTail(t *testing.T) {
	a := New(t.TempDir())

	a.Append("notes", "old question", "old answer")
	a.Append("notes", "new question", "new answer")

	full := a.LoadRecent("notes", 0)
	require.Greater(t, len(full), 20)

	tail := a.LoadRecent("notes", 20)
	assert.Len(t, tail, 20)
	assert.Equal(t, full[len(full)-20:], tail)
	assert.Contains(t, full, "old question")
	assert.NotContains(t, tail, "old question")
}

func TestArchive_TruncationExactBoundary(t *testing.T) {
	a := New(t.TempDir())
	a.Append("notes", "q", "r")

	full := a.LoadRecent("notes", 0)

	// maxChars exactly equal to the content length returns it unmodified.
	assert.Equal(t, full, a.LoadRecent("notes", len(full)))
	// One below drops exactly the first character.
	assert.Equal(t, full[1:], a.LoadRecent("notes", len(full)-1))
	// One above returns everything.
	assert.Equal(t, full, a.LoadRecent("notes", len(full)+1))
}

func TestArchive_TruncationNeverSplitsRunes(t *testing.T) {
	a := New(t.TempDir())
	a.Append("notes", "früher", "Küchenmaschine — übermäßig laut")

	full := a.LoadRecent("notes", 0)

	// Walk the cut point across every byte offset; the returned tail must
	// always be valid UTF-8 even when the byte cut lands mid-rune.
	for maxChars := 1; maxChars < len(full); maxChars++ {
		tail := a.LoadRecent("notes", maxChars)
		assert.True(t, utf8.ValidString(tail), "maxChars=%d tail=%q", maxChars, tail)
		assert.LessOrEqual(t, len(tail), maxChars)
	}
}

func TestArchive_EntryFormat(t *testing.T) {
	a := New(t.TempDir())
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	a.now = func() time.Time { return ts }

	a.Append("notes", "the question", "the answer")

	content := a.LoadRecent("notes", 0)
	assert.Contains(t, content, "=== 2026-03-14T09:26:53Z ===")
	assert.Contains(t, content, "Q: the question\nA: the answer\n")
}

func TestArchive_ConcurrentAppendsDoNotInterleave(t *testing.T) {
	a := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a.Append("notes", fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		}(i)
	}
	wg.Wait()

	content := a.LoadRecent("notes", 0)
	assert.Equal(t, 20, strings.Count(content, "===\nQ: ")) // one intact entry header per append
	for i := 0; i < 20; i++ {
		assert.Contains(t, content, fmt.Sprintf("Q: q%d\nA: a%d\n", i, i))
	}
}

func TestArchive_AppendSwallowsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	// Make the domain path unwritable by placing a file where the domain
	// directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocked"), nil, 0o644))

	// Must not panic or error.
	a.Append("blocked", "q", "r")
	assert.Empty(t, a.LoadRecent("blocked", 0))
}
