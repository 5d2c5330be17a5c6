package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	type entry struct {
		URN  string
		Node string
	}
	s := NewMemStore()

	_, err := Get[entry](t.Context(), s, "actors.echo")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Put(t.Context(), s, "actors.echo", entry{URN: "echo", Node: "n1"}, PutOptions{}))
	require.NoError(t, Put(t.Context(), s, "actors.clock", entry{URN: "clock", Node: "n1"}, PutOptions{}))

	loaded, err := Get[entry](t.Context(), s, "actors.echo")
	require.NoError(t, err)
	require.Equal(t, entry{URN: "echo", Node: "n1"}, loaded)

	ok, err := Has(t.Context(), s, "actors.clock")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(t.Context(), "actors.echo"))
	ok, err = Has(t.Context(), s, "actors.echo")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, s.Len())
}

func TestMemStore_TTL(t *testing.T) {
	s := NewMemStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(t.Context(), "k", Entry{Data: []byte(`{}`)}, PutOptions{TTL: time.Minute}))
	_, err := s.Get(t.Context(), "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.Get(t.Context(), "k")
	require.ErrorIs(t, err, ErrNotFound)
}
