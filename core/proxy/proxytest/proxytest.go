// Package proxytest starts a complete bridge for tests and holds the
// end-to-end scenarios every bus adapter is expected to pass.
package proxytest

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/proxy"
)

type (
	Ping struct {
		Seq  int    `json:"seq"`
		Note string `json:"note,omitempty"`
	}
	Pong struct {
		Seq  int    `json:"seq"`
		Note string `json:"note,omitempty"`
	}
)

type Bridge struct {
	Config    proxy.Config
	Registry  *actor.Registry
	Responder *actor.Actor
	Client    *proxy.Client
	Connect   bus.Connector
}

type Option func(*options)

type options struct {
	cfg       func(*proxy.Config)
	directory *proxy.Directory
	metrics   proxy.ProxyMetrics
}

func WithConfig(f func(*proxy.Config)) Option { return func(o *options) { o.cfg = f } }

func WithDirectory(d *proxy.Directory) Option { return func(o *options) { o.directory = d } }

func WithMetrics(m proxy.ProxyMetrics) Option { return func(o *options) { o.metrics = m } }

// Start runs a responder and a client on connect. Channel names are unique per
// call so that bridges on a shared broker do not see each other.
func Start(t *testing.T, connect bus.Connector, opts ...Option) *Bridge {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	suffix := gonanoid.Must(8)
	cfg := proxy.DefaultConfig()
	cfg.InboundChannel = "out2actor." + suffix
	cfg.OutboundPrefix = "actor2out." + suffix + "/"
	if o.cfg != nil {
		o.cfg(&cfg)
	}

	log := slog.New(slog.DiscardHandler)
	reg := actor.NewRegistry()

	responder, err := proxy.StartResponder(t.Context(), proxy.ResponderOptions{
		Config:   cfg,
		Connect:  connect,
		Registry: reg,
		Log:      log,
		Metrics:  o.metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = responder.Stop() })

	client, err := proxy.NewClient(t.Context(), proxy.ClientOptions{
		Config:    cfg,
		Connect:   connect,
		Log:       log,
		Metrics:   o.metrics,
		Directory: o.directory,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &Bridge{Config: cfg, Registry: reg, Responder: responder, Client: client, Connect: connect}
}

// Spawn starts an actor registered as id in the bridge's registry.
func (b *Bridge) Spawn(t *testing.T, id string, hs ...actor.HandlerRegistration) *actor.Actor {
	t.Helper()
	a := actor.New(actor.Options{ID: id, Registry: b.Registry, Logger: slog.New(slog.DiscardHandler)}, actor.TypedHandlers(hs...))
	require.NoError(t, a.Start(t.Context()))
	t.Cleanup(func() { _ = a.Stop() })
	return a
}

// Echo answers every Ping with a Pong carrying the same fields.
func Echo() actor.HandlerRegistration {
	return actor.HandleRequest(func(hc actor.HandlerCtx, p Ping) (*Pong, error) {
		return &Pong{Seq: p.Seq, Note: p.Note}, nil
	})
}

// Run executes the end-to-end scenarios against connect.
func Run(t *testing.T, connect bus.Connector) {
	t.Run("basic ask", func(t *testing.T) {
		b := Start(t, connect)
		b.Spawn(t, "echo", Echo())

		out, err := proxy.Ask[Ping, Pong](t.Context(), b.Client, "echo", Ping{Seq: 1, Note: "hi"}, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, Pong{Seq: 1, Note: "hi"}, *out)
	})

	t.Run("unknown identity times out", func(t *testing.T) {
		b := Start(t, connect)

		start := time.Now()
		_, err := proxy.Ask[Ping, Pong](t.Context(), b.Client, "missing", Ping{}, 2*time.Second)
		require.ErrorIs(t, err, proxy.ErrAskTimeout)
		require.GreaterOrEqual(t, time.Since(start), 2*time.Second)
		require.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("unknown identity nack", func(t *testing.T) {
		b := Start(t, connect, WithConfig(func(c *proxy.Config) { c.NackUnknown = true }))

		_, err := proxy.Ask[Ping, Pong](t.Context(), b.Client, "missing", Ping{}, 5*time.Second)
		var re *proxy.RemoteError
		require.True(t, errors.As(err, &re), "got %v", err)
		require.Equal(t, "unknown_identity", re.Code)
		require.ErrorIs(t, err, actor.ErrUnknownIdentity)
	})

	t.Run("sequential asks", func(t *testing.T) {
		b := Start(t, connect)
		b.Spawn(t, "echo", Echo())

		for i := 0; i < 20; i++ {
			out, err := proxy.Ask[Ping, Pong](t.Context(), b.Client, "echo", Ping{Seq: i}, 5*time.Second)
			require.NoError(t, err)
			require.Equal(t, i, out.Seq)
		}
	})
}
