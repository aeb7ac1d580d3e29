// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package pattern_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// removeIndexFiles deletes the per-domain embedding caches under dir,
// leaving the pattern files in place.
func removeIndexFiles(t *testing.T, dir string) {
	t.Helper()
	caches, err := filepath.Glob(filepath.Join(dir, "*", "patterns.embeddings.json"))
	require.NoError(t, err)
	for _, cache := range caches {
		require.NoError(t, os.Remove(cache))
	}
}
