// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package persona_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageway/sage/internal/persona"
	sageerr "github.com/sageway/sage/pkg/errors"
)

func TestRegistry_Resolve(t *testing.T) {
	r := persona.NewRegistry()

	tests := []struct {
		name          string
		source        persona.Source
		showReasoning bool
	}{
		{"poet", persona.SourceVoid, false},
		{"librarian", persona.SourceLibrary, true},
		{"researcher", persona.SourceInternet, true},
		{"journal", persona.SourceDirect, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.source, p.Source)
			assert.Equal(t, tt.showReasoning, p.ShowReasoning)
		})
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := persona.NewRegistry()

	_, err := r.Resolve("oracle")
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodePersonaNotFound))
}

func TestRegistry_TemperatureOrdering(t *testing.T) {
	r := persona.NewRegistry()

	poet, _ := r.Resolve("poet")
	librarian, _ := r.Resolve("librarian")
	researcher, _ := r.Resolve("researcher")

	// Creativity runs hot, accuracy runs cold, research sits between.
	assert.Greater(t, poet.Temperature, researcher.Temperature)
	assert.Greater(t, researcher.Temperature, librarian.Temperature)
}
