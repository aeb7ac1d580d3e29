// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package provider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sageway/sage/internal/provider"
	sageerr "github.com/sageway/sage/pkg/errors"
)

type stubProvider struct {
	name   string
	closed bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ provider.Request) (string, error) {
	return "ok", nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestRegistry_ResolveDefault(t *testing.T) {
	r := provider.NewRegistry()
	r.Register("stub", &stubProvider{name: "stub"})
	require.NoError(t, r.SetDefault("stub/model-a"))

	p, model, err := r.Resolve("any-domain")
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())
	assert.Equal(t, "model-a", model)
}

func TestRegistry_DomainOverride(t *testing.T) {
	r := provider.NewRegistry()
	r.Register("stub", &stubProvider{name: "stub"})
	r.Register("other", &stubProvider{name: "other"})
	require.NoError(t, r.SetDefault("stub/model-a"))
	require.NoError(t, r.SetOverride("poetry", "other/model-b"))

	p, model, err := r.Resolve("poetry")
	require.NoError(t, err)
	assert.Equal(t, "other", p.Name())
	assert.Equal(t, "model-b", model)

	p, _, err = r.Resolve("cooking")
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())
}

func TestRegistry_NoDefault(t *testing.T) {
	r := provider.NewRegistry()

	_, _, err := r.Resolve("domain")
	require.Error(t, err)
	assert.True(t, sageerr.HasCode(err, sageerr.CodeProviderNoDefault))
}

func TestRegistry_UnregisteredRefRejected(t *testing.T) {
	r := provider.NewRegistry()

	err := r.SetDefault("ghost/model")
	assert.True(t, sageerr.HasCode(err, sageerr.CodeProviderNotFound))

	err = r.SetOverride("domain", "ghost/model")
	assert.True(t, sageerr.HasCode(err, sageerr.CodeProviderNotFound))
}

func TestRegistry_CloseClosesAll(t *testing.T) {
	r := provider.NewRegistry()
	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b"}
	r.Register("a", a)
	r.Register("b", b)

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
