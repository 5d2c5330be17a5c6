package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/bus/bustest"
)

func TestHub_Contract(t *testing.T) {
	bustest.Run(t, bus.NewHub().Connector())
}

func TestHub_FanOut(t *testing.T) {
	hub := bus.NewHub()
	pub := hub.Connect()

	var subs []bus.Subscription
	for i := 0; i < 3; i++ {
		s, err := hub.Connect().Subscribe(t.Context(), "fan")
		require.NoError(t, err)
		subs = append(subs, s)
	}
	require.Equal(t, 3, hub.Subscribers("fan"))

	require.NoError(t, pub.Publish(t.Context(), "fan", []byte("x")))
	for _, s := range subs {
		require.Equal(t, "x", string(bustest.Await(t, s).Data))
	}

	for _, s := range subs {
		require.NoError(t, s.Unsubscribe())
	}
	require.Equal(t, 0, hub.Subscribers("fan"))
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := bus.NewHub()
	c := hub.Connect()
	_, err := c.Subscribe(t.Context(), "a")
	require.NoError(t, err)
	_, err = c.Subscribe(t.Context(), "b")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.Equal(t, 0, hub.Subscribers("a"))
	require.Equal(t, 0, hub.Subscribers("b"))
}

func TestHub_InboxOverflowDrops(t *testing.T) {
	hub := bus.NewHub().WithInboxSize(2)
	c := hub.Connect()
	s, err := c.Subscribe(t.Context(), "small")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Publish(t.Context(), "small", []byte{byte(i)}))
	}
	require.Equal(t, []byte{0}, bustest.Await(t, s).Data)
	require.Equal(t, []byte{1}, bustest.Await(t, s).Data)
	bustest.AssertSilent(t, s, 20*time.Millisecond)
}

func TestNext_Cancel(t *testing.T) {
	s, err := bus.NewHub().Connect().Subscribe(t.Context(), "idle")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = bus.Next(ctx, s, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNext_SkipsControl(t *testing.T) {
	in := bus.NewInbox("ctl", 4, nil)
	require.True(t, in.Deliver(bus.Message{Channel: "ctl", Control: true}))
	require.True(t, in.Deliver(bus.Message{Channel: "ctl", Data: []byte("data")}))

	msg, err := bus.Next(t.Context(), in, bus.NewIdleBackoff())
	require.NoError(t, err)
	require.Equal(t, "data", string(msg.Data))

	require.NoError(t, in.Unsubscribe())
	require.False(t, in.Deliver(bus.Message{Channel: "ctl"}))
	_, err = bus.Next(t.Context(), in, nil)
	require.ErrorIs(t, err, bus.ErrClosed)
}
