package actor

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRef struct {
	id   string
	msgs []any
}

func (s *stubRef) ID() string { return s.id }
func (s *stubRef) Tell(msg any) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestRegistry_RegisterResolve(t *testing.T) {
	r := NewRegistry()
	echo := &stubRef{id: "echo"}

	require.NoError(t, r.Register(echo))
	ref, err := r.Resolve("echo")
	require.NoError(t, err)
	require.Same(t, echo, ref)

	err = r.Register(&stubRef{id: "echo"})
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = r.Resolve("missing")
	require.ErrorIs(t, err, ErrUnknownIdentity)

	require.NoError(t, r.Tell("echo", "hi"))
	require.Equal(t, []any{"hi"}, echo.msgs)
	require.ErrorIs(t, r.Tell("missing", "hi"), ErrUnknownIdentity)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubRef{id: "a"}))
	require.Equal(t, 1, r.Len())

	r.Unregister("a")
	r.Unregister("a")
	require.Equal(t, 0, r.Len())

	_, err := r.Resolve("a")
	require.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestRegistry_RemoveOnlyOwner(t *testing.T) {
	r := NewRegistry()
	first := &stubRef{id: "a"}
	second := &stubRef{id: "a"}

	require.NoError(t, r.Register(first))
	r.Unregister("a")
	require.NoError(t, r.Register(second))

	// a late removal of the old owner must not drop the new one
	r.remove(first)
	ref, err := r.Resolve("a")
	require.NoError(t, err)
	require.Same(t, second, ref)

	r.remove(second)
	require.Equal(t, 0, r.Len())
}

func TestRegistry_Watch(t *testing.T) {
	r := NewRegistry()
	var events []RegistryEvent
	cancel := r.Watch(func(ev RegistryEvent) { events = append(events, ev) })

	require.NoError(t, r.Register(&stubRef{id: "a"}))
	require.Error(t, r.Register(&stubRef{id: "a"}))
	r.Unregister("a")
	r.Unregister("a")

	cancel()
	require.NoError(t, r.Register(&stubRef{id: "b"}))

	require.Equal(t, []RegistryEvent{
		{Kind: Registered, ID: "a"},
		{Kind: Unregistered, ID: "a"},
	}, events)
	require.Equal(t, "registered", Registered.String())
	require.Equal(t, "unregistered", Unregistered.String())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		id := fmt.Sprintf("actor-%02d", i)
		go func() {
			defer wg.Done()
			require.NoError(t, r.Register(&stubRef{id: id}))
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Resolve(id)
			_ = r.IDs()
		}()
	}
	wg.Wait()

	ids := r.IDs()
	require.Len(t, ids, 50)
	require.Equal(t, "actor-00", ids[0])
	require.Equal(t, "actor-49", ids[49])
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	require.True(t, strings.HasPrefix(a, "urn:uuid:"), a)
	require.NotEqual(t, a, b)
}
