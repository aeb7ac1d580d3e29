// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package sqlitevec

import (
	"github.com/sageway/sage/internal/embed"
	"github.com/sageway/sage/internal/index"
)

func init() {
	index.RegisterBackend("sqlite", func(embedder embed.Embedder, path string) (index.Index, error) {
		return New(embedder, path+".db")
	})
}
