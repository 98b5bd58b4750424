package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter only needs an identity; the interface methods are never called.
type stubAdapter struct {
	ProjectsAdapter
	name string
}

func TestProvider_LazyResolveAndCache(t *testing.T) {
	calls := 0
	p := NewProvider(func() (ProjectsAdapter, error) {
		calls++
		return &stubAdapter{name: "default"}, nil
	})

	a1, err := p.Get()
	require.NoError(t, err)
	a2, err := p.Get()
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, 1, calls, "factory runs once")
}

func TestProvider_FactoryError(t *testing.T) {
	boom := errors.New("db down")
	p := NewProvider(func() (ProjectsAdapter, error) { return nil, boom })

	_, err := p.Get()
	require.ErrorIs(t, err, boom)
}

func TestProvider_OverrideAndReset(t *testing.T) {
	p := NewProvider(func() (ProjectsAdapter, error) {
		return &stubAdapter{name: "default"}, nil
	})

	override := &stubAdapter{name: "test"}
	p.Override(override)

	got, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, override, got, "override wins for all subsequent gets")

	p.Reset()
	got, err = p.Get()
	require.NoError(t, err)
	require.IsType(t, &stubAdapter{}, got)
	assert.Equal(t, "default", got.(*stubAdapter).name, "reset returns to the factory default")
}
