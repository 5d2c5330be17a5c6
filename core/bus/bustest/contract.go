// Package bustest holds the behavioural contract every bus adapter must meet.
package bustest

import (
	"context"
	"fmt"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/bus"
)

const waitTimeout = 5 * time.Second

// Run executes the contract against connections obtained from connect.
func Run(t *testing.T, connect bus.Connector) {
	t.Helper()

	open := func(t *testing.T) bus.Bus {
		b, err := connect(t.Context())
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	}

	channel := func(name string) string {
		return "bustest." + name + "." + gonanoid.Must(8)
	}

	t.Run("publish reaches subscriber on other connection", func(t *testing.T) {
		pub, sub := open(t), open(t)
		ch := channel("basic")

		s, err := sub.Subscribe(t.Context(), ch)
		require.NoError(t, err)
		require.Equal(t, ch, s.Channel())

		require.NoError(t, pub.Publish(t.Context(), ch, []byte("hello")))

		msg := Await(t, s)
		require.Equal(t, "hello", string(msg.Data))
		require.Equal(t, ch, msg.Channel)
		require.NoError(t, s.Unsubscribe())
	})

	t.Run("poll does not block when empty", func(t *testing.T) {
		b := open(t)
		s, err := b.Subscribe(t.Context(), channel("empty"))
		require.NoError(t, err)

		start := time.Now()
		for {
			msg, ok, err := s.Poll()
			require.NoError(t, err)
			if !ok {
				break
			}
			require.True(t, msg.Control, "only control traffic expected")
		}
		require.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("channels are isolated", func(t *testing.T) {
		b := open(t)
		a, other := channel("a"), channel("b")

		sa, err := b.Subscribe(t.Context(), a)
		require.NoError(t, err)
		sb, err := b.Subscribe(t.Context(), other)
		require.NoError(t, err)

		require.NoError(t, b.Publish(t.Context(), a, []byte("for-a")))
		require.Equal(t, "for-a", string(Await(t, sa).Data))

		AssertSilent(t, sb, 50*time.Millisecond)
	})

	t.Run("order is preserved within a channel", func(t *testing.T) {
		pub, sub := open(t), open(t)
		ch := channel("order")
		s, err := sub.Subscribe(t.Context(), ch)
		require.NoError(t, err)

		const n = 200
		for i := 0; i < n; i++ {
			require.NoError(t, pub.Publish(t.Context(), ch, []byte(fmt.Sprintf("%d", i))))
		}
		for i := 0; i < n; i++ {
			require.Equal(t, fmt.Sprintf("%d", i), string(Await(t, s).Data))
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		b := open(t)
		ch := channel("unsub")
		s, err := b.Subscribe(t.Context(), ch)
		require.NoError(t, err)
		require.NoError(t, s.Unsubscribe())
		require.NoError(t, s.Unsubscribe())

		require.NoError(t, b.Publish(t.Context(), ch, []byte("lost")))
		_, _, err = s.Poll()
		require.ErrorIs(t, err, bus.ErrClosed)
	})

	t.Run("closed connection rejects use", func(t *testing.T) {
		b, err := connect(t.Context())
		require.NoError(t, err)
		require.NoError(t, b.Close())

		require.ErrorIs(t, b.Publish(t.Context(), channel("closed"), []byte("x")), bus.ErrClosed)
		_, err = b.Subscribe(t.Context(), channel("closed"))
		require.ErrorIs(t, err, bus.ErrClosed)
	})

	t.Run("empty channel name is rejected", func(t *testing.T) {
		b := open(t)
		require.ErrorIs(t, b.Publish(t.Context(), "", []byte("x")), bus.ErrInvalidChannel)
		_, err := b.Subscribe(t.Context(), "")
		require.ErrorIs(t, err, bus.ErrInvalidChannel)
	})
}

// Await waits for the next data message on s or fails the test.
func Await(t *testing.T, s bus.Subscription) bus.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), waitTimeout)
	defer cancel()
	msg, err := bus.Next(ctx, s, nil)
	require.NoError(t, err, "waiting for message on %s", s.Channel())
	return msg
}

// AssertSilent fails if a data message arrives on s within d.
func AssertSilent(t *testing.T, s bus.Subscription, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), d)
	defer cancel()
	msg, err := bus.Next(ctx, s, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected message: %q", msg.Data)
}
