package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/bus/bustest"
	"github.com/codewandler/actorbus/core/proxy"
	"github.com/codewandler/actorbus/core/proxy/proxytest"
)

func TestRedis_Bus(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}

	cfg := NewTestContainer(t)
	connector := Connector(cfg)

	t.Run("contract", func(t *testing.T) { bustest.Run(t, connector) })
	t.Run("scenarios", func(t *testing.T) { proxytest.Run(t, connector) })

	t.Run("subscribe confirmation is not data", func(t *testing.T) {
		b, err := Connect(t.Context(), cfg)
		require.NoError(t, err)
		defer func() { _ = b.Close() }()

		sub, err := b.Subscribe(t.Context(), "control-check")
		require.NoError(t, err)
		bustest.AssertSilent(t, sub, 100*time.Millisecond)

		require.NoError(t, b.Publish(t.Context(), "control-check", []byte(`{"x":1}`)))
		msg := bustest.Await(t, sub)
		require.False(t, msg.Control)
		require.Equal(t, `{"x":1}`, string(msg.Data))
	})

	t.Run("closed bus", func(t *testing.T) {
		b, err := Connect(t.Context(), cfg)
		require.NoError(t, err)
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())
		require.ErrorIs(t, b.Publish(t.Context(), "x", nil), bus.ErrClosed)
	})
}

func TestConnect_Errors(t *testing.T) {
	_, err := Connect(t.Context(), BusConfig{})
	require.Error(t, err)

	_, err = Connect(t.Context(), ConfigFrom(proxy.BusConfig{Host: "127.0.0.1", Port: 1}, nil))
	require.ErrorContains(t, err, "127.0.0.1:1")
}
