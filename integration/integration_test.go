package integration

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/app"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/envelope"
	"github.com/codewandler/actorbus/core/proxy"
	"github.com/codewandler/actorbus/ports/kv"
)

type (
	myRequest struct {
		A int
		B int
	}
	myResponse struct{ V int }
	myFailure  struct{}
	myCount    struct{}
	myCounted  struct{ N int }
	beat       struct{}
)

func calculator() []actor.HandlerRegistration {
	return []actor.HandlerRegistration{
		actor.HandleRequest[myRequest, myResponse](func(_ actor.HandlerCtx, req myRequest) (*myResponse, error) {
			return &myResponse{V: req.A + req.B}, nil
		}),
		actor.HandleRequest[myFailure, myResponse](func(actor.HandlerCtx, myFailure) (*myResponse, error) {
			return nil, errors.New("I failed")
		}),
	}
}

func beater(interval time.Duration) []actor.HandlerRegistration {
	var n int
	return []actor.HandlerRegistration{
		actor.HandleTick[beat](interval, func(actor.HandlerCtx, beat) error {
			n++
			return nil
		}),
		actor.HandleRequest[myCount, myCounted](func(actor.HandlerCtx, myCount) (*myCounted, error) {
			return &myCounted{N: n}, nil
		}),
	}
}

// startNodes runs n apps sharing one in-memory bus and one directory store.
func startNodes(t *testing.T, n int) []*app.App {
	t.Helper()

	hub := bus.NewHub()
	store := kv.NewMemStore()
	log := slog.New(slog.DiscardHandler)

	nodes := make([]*app.App, n)
	for i := range nodes {
		a, err := app.Run(app.Config{
			Context:   t.Context(),
			Log:       log,
			NodeID:    fmt.Sprintf("node-%d", i),
			Connect:   hub.Connector(),
			Directory: store,
		})
		require.NoError(t, err)
		t.Cleanup(a.Stop)
		nodes[i] = a
	}
	return nodes
}

func TestIntegration_AskAcrossNodes(t *testing.T) {
	nodes := startNodes(t, 3)

	_, err := nodes[0].Spawn("calc", calculator()...)
	require.NoError(t, err)

	for i, node := range nodes {
		require.Eventually(t, func() bool {
			res, err := proxy.Ask[myRequest, myResponse](t.Context(), node.Client(), "calc", myRequest{A: i, B: 10}, time.Second)
			return err == nil && res.V == i+10
		}, 2*time.Second, 20*time.Millisecond, "node %d", i)
	}
}

func TestIntegration_HandlerErrorIsRemote(t *testing.T) {
	nodes := startNodes(t, 2)
	_, err := nodes[0].Spawn("calc", calculator()...)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := proxy.Ask[myFailure, myResponse](t.Context(), nodes[1].Client(), "calc", myFailure{}, time.Second)
		var remote *proxy.RemoteError
		return errors.As(err, &remote) && remote.Code == envelope.CodeHandler
	}, 2*time.Second, 20*time.Millisecond)

	// the actor survives its handler error
	res, err := proxy.Ask[myRequest, myResponse](t.Context(), nodes[1].Client(), "calc", myRequest{A: 1, B: 2}, time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, res.V)
}

func TestIntegration_UnknownIdentityFailsFast(t *testing.T) {
	nodes := startNodes(t, 2)

	start := time.Now()
	_, err := proxy.Ask[myRequest, myResponse](t.Context(), nodes[1].Client(), "nobody", myRequest{}, 10*time.Second)
	require.ErrorIs(t, err, actor.ErrUnknownIdentity)
	require.Less(t, time.Since(start), time.Second)
}

func TestIntegration_StoppedActorLeavesDirectory(t *testing.T) {
	nodes := startNodes(t, 2)
	calc, err := nodes[0].Spawn("calc", calculator()...)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := proxy.Ask[myRequest, myResponse](t.Context(), nodes[1].Client(), "calc", myRequest{A: 1, B: 1}, time.Second)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, calc.Stop())

	require.Eventually(t, func() bool {
		_, err := proxy.Ask[myRequest, myResponse](t.Context(), nodes[1].Client(), "calc", myRequest{}, time.Second)
		return errors.Is(err, actor.ErrUnknownIdentity)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestIntegration_PeriodicActorOverBus(t *testing.T) {
	nodes := startNodes(t, 1)
	_, err := nodes[0].Spawn("beater", beater(50*time.Millisecond)...)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err := proxy.Ask[myCount, myCounted](t.Context(), nodes[0].Client(), "beater", myCount{}, time.Second)
		return err == nil && res.N >= 5
	}, 3*time.Second, 50*time.Millisecond)
}

func TestIntegration_NodeShutdown(t *testing.T) {
	nodes := startNodes(t, 2)
	_, err := nodes[0].Spawn("calc", calculator()...)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := proxy.Ask[myRequest, myResponse](t.Context(), nodes[1].Client(), "calc", myRequest{}, time.Second)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, nodes[0].Shutdown(t.Context()))
	require.Zero(t, nodes[0].Registry().Len())

	require.Eventually(t, func() bool {
		_, err := proxy.Ask[myRequest, myResponse](t.Context(), nodes[1].Client(), "calc", myRequest{}, time.Second)
		return errors.Is(err, actor.ErrUnknownIdentity)
	}, 2*time.Second, 20*time.Millisecond)
}
