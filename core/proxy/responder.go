package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/envelope"
)

type ResponderOptions struct {
	Config       Config
	Connect      bus.Connector
	Registry     *actor.Registry
	Log          *slog.Logger
	Metrics      ProxyMetrics
	ActorMetrics actor.ActorMetrics
	NackUnknown  bool
	IdleBackoff  func() backoff.BackOff
	MailboxSize  int
}

type responder struct {
	opts ResponderOptions
	log  *slog.Logger

	conn   bus.Bus
	poller *Poller
}

// NewResponder returns the actor registered as actor.ResponderID. On start it
// connects to the bus and starts a Poller for the inbound channel. It
// publishes every envelope.Response it is told, drops anything else and stops
// the Poller when it stops or fails.
func NewResponder(opts ResponderOptions) *actor.Actor {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopProxyMetrics()
	}
	r := &responder{opts: opts, log: opts.Log.With(slog.String("component", "responder"))}

	return actor.New(actor.Options{
		ID:          actor.ResponderID,
		Registry:    opts.Registry,
		MailboxSize: opts.MailboxSize,
		Logger:      opts.Log,
		Metrics:     opts.ActorMetrics,
	}, actor.TypedHandlers(
		actor.OnStart(r.start),
		actor.HandleMsg(r.publish),
		actor.DefaultHandler(r.drop),
		actor.OnStop(r.stop),
	))
}

// StartResponder creates and starts the responder.
func StartResponder(ctx context.Context, opts ResponderOptions) (*actor.Actor, error) {
	a := NewResponder(opts)
	if err := a.Start(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *responder) start(hc actor.HandlerCtx) error {
	if r.opts.Connect == nil {
		return fmt.Errorf("%w: responder needs a connector", ErrInvalidConfig)
	}
	conn, err := r.opts.Connect(hc)
	if err != nil {
		return fmt.Errorf("proxy: responder connect: %w", err)
	}

	poller := NewPoller(PollerOptions{
		Config:      r.opts.Config,
		Connect:     r.opts.Connect,
		Registry:    hc.Registry(),
		Log:         r.opts.Log,
		Metrics:     r.opts.Metrics,
		NackUnknown: r.opts.NackUnknown,
		IdleBackoff: r.opts.IdleBackoff,
	})
	if err := poller.Start(hc); err != nil {
		_ = conn.Close()
		return err
	}

	r.conn, r.poller = conn, poller
	r.log.Info(
		"responder started",
		slog.String("inbound_channel", r.opts.Config.InboundChannel),
		slog.String("outbound_prefix", r.opts.Config.OutboundPrefix),
	)
	return nil
}

func (r *responder) publish(hc actor.HandlerCtx, resp envelope.Response) error {
	channel := r.opts.Config.ResponseChannel(resp.MessageID)
	log := r.log.With(slog.String("message_id", resp.MessageID), slog.String("channel", channel))

	data, err := resp.Encode()
	if err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
		return nil
	}
	if err := r.conn.Publish(hc, channel, data); err != nil {
		if errors.Is(err, bus.ErrClosed) {
			return fmt.Errorf("proxy: responder publish: %w", err)
		}
		log.Error("failed to publish response", slog.Any("error", err))
		return nil
	}

	r.opts.Metrics.ResponsePublished(resp.MessageType)
	log.Debug("response delivered", slog.String("message_type", resp.MessageType))
	return nil
}

func (r *responder) drop(_ actor.HandlerCtx, msg any) error {
	r.opts.Metrics.DispatchDropped(ReasonReservedIdentity)
	r.log.Warn("responder dropped a message that is not a response", slog.String("message_type", envelope.TypeOfValue(msg)))
	return nil
}

func (r *responder) stop(_ actor.HandlerCtx, cause error) {
	if r.poller != nil {
		_ = r.poller.Stop()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	if cause != nil {
		r.log.Error("responder stopped", slog.Any("error", cause))
		return
	}
	r.log.Info("responder stopped")
}
