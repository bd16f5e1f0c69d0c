package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface{ Name() string }

type memStore struct{ prefix string }

func (m *memStore) Name() string { return m.prefix + "mem" }

func newMemStore(prefix string) *memStore { return &memStore{prefix: prefix} }

type greeter interface{ Greet() string }

type defaultGreeter struct{ s store }

func (g *defaultGreeter) Greet() string { return "hello " + g.s.Name() }

func newDefaultGreeter(s store) *defaultGreeter { return &defaultGreeter{s: s} }

func TestBindResolve(t *testing.T) {
	c := New()
	Supply(c, "test-")
	Bind[store, memStore](c, newMemStore)
	Bind[greeter, defaultGreeter](c, newDefaultGreeter)
	require.NoError(t, c.Err())

	g, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "hello test-mem", g.Greet())
}

func TestBindErrors(t *testing.T) {
	t.Run("not implemented", func(t *testing.T) {
		c := New()
		Bind[greeter, memStore](c, newMemStore)
		require.Error(t, c.Err())
		assert.Contains(t, c.Err().Error(), "does not implement")
	})

	t.Run("duplicate", func(t *testing.T) {
		c := New()
		Supply(c, "")
		Bind[store, memStore](c, newMemStore)
		Bind[store, memStore](c, newMemStore)
		assert.Error(t, c.Err())
	})

	t.Run("missing dependency", func(t *testing.T) {
		c := New()
		Bind[store, memStore](c, newMemStore)
		require.NoError(t, c.Err())
		_, err := Resolve[store](c)
		assert.Error(t, err)
	})
}

type loader struct{ s store }

func newLoader(s store) *loader { return &loader{s: s} }

func TestProvide(t *testing.T) {
	c := New()
	Supply(c, "p-")
	Bind[store, memStore](c, newMemStore)
	Provide[loader](c, newLoader)
	require.NoError(t, c.Err())

	l, err := Resolve[*loader](c)
	require.NoError(t, err)
	assert.Equal(t, "p-mem", l.s.Name())

	Provide[loader](c, newLoader)
	assert.ErrorContains(t, c.Err(), "provide")
}
