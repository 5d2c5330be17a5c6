package nats

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/bus/bustest"
	"github.com/codewandler/actorbus/core/proxy/proxytest"
)

func TestNats_Bus(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}

	connector := BusConnector(BusConfig{
		Connect: NewTestContainer(t),
		Log:     slog.New(slog.DiscardHandler),
	})

	t.Run("contract", func(t *testing.T) { bustest.Run(t, connector) })
	t.Run("scenarios", func(t *testing.T) { proxytest.Run(t, connector) })
}

func TestNewBus_RequiresConnect(t *testing.T) {
	_, err := NewBus(BusConfig{})
	require.Error(t, err)

	var _ bus.Connector = BusConnector(BusConfig{})
}
