package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/envelope"
)

type PollerOptions struct {
	Config   Config
	Connect  bus.Connector
	Registry *actor.Registry
	Log      *slog.Logger
	Metrics  ProxyMetrics
	// NackUnknown overrides Config.NackUnknown when set.
	NackUnknown bool
	// IdleBackoff creates the backoff used between empty polls. Defaults to
	// bus.NewIdleBackoff.
	IdleBackoff func() backoff.BackOff
}

// Poller reads requests from the inbound channel and tells them to the
// addressed actors. It never waits for an actor to process a request.
type Poller struct {
	cfg      Config
	connect  bus.Connector
	registry *actor.Registry
	log      *slog.Logger
	metrics  ProxyMetrics
	nack     bool
	idle     func() backoff.BackOff

	mu       sync.Mutex
	started  bool
	conn     bus.Bus
	sub      bus.Subscription
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewPoller(opts PollerOptions) *Poller {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopProxyMetrics()
	}
	if opts.IdleBackoff == nil {
		opts.IdleBackoff = bus.NewIdleBackoff
	}
	return &Poller{
		cfg:      opts.Config,
		connect:  opts.Connect,
		registry: opts.Registry,
		log:      opts.Log.With(slog.String("component", "poller"), slog.String("channel", opts.Config.InboundChannel)),
		metrics:  opts.Metrics,
		nack:     opts.NackUnknown || opts.Config.NackUnknown,
		idle:     opts.IdleBackoff,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start opens a connection and subscribes to the inbound channel before it
// returns, then polls on a separate goroutine.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.connect == nil || p.registry == nil {
		return fmt.Errorf("%w: poller needs a connector and a registry", ErrInvalidConfig)
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return fmt.Errorf("proxy: poller connect: %w", err)
	}
	sub, err := conn.Subscribe(ctx, p.cfg.InboundChannel)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("proxy: poller subscribe: %w", err)
	}

	p.conn, p.sub, p.started = conn, sub, true
	go p.run()
	p.log.Debug("poller started")
	return nil
}

// Stop signals the polling goroutine and waits for it to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
	return nil
}

func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) run() {
	defer close(p.done)
	defer func() {
		_ = p.sub.Unsubscribe()
		_ = p.conn.Close()
		p.log.Debug("poller stopped")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	idle := p.idle()
	for {
		msg, err := bus.Next(ctx, p.sub, idle)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("poll failed", slog.Any("error", err))
			if errors.Is(err, bus.ErrClosed) {
				return
			}
			continue
		}
		p.dispatch(ctx, msg)
	}
}

func (p *Poller) dispatch(ctx context.Context, msg bus.Message) {
	req, err := envelope.DecodeRequest(msg.Data)
	if err != nil {
		p.metrics.DecodeFailed("request")
		p.log.Warn("dropping undecodable request", slog.Any("error", err))
		return
	}

	_, span := startSpan(ctx, "actorbus.dispatch", trace.SpanKindConsumer, req)
	err = p.deliver(req)
	endSpan(span, err)
}

func (p *Poller) deliver(req envelope.Request) error {
	log := p.log.With(
		slog.String("urn", req.ActorURN),
		slog.String("message_id", req.MessageID),
		slog.String("message_type", req.MessageType),
	)

	// the responder is the bridge's egress and never takes requests
	if req.ActorURN == actor.ResponderID {
		p.metrics.DispatchDropped(ReasonReservedIdentity)
		log.Warn("request addressed to the responder", slog.Bool("nack", p.nack))
		if p.nack {
			p.nackUnknown(log, req)
		}
		return fmt.Errorf("%w: %s is reserved", actor.ErrUnknownIdentity, req.ActorURN)
	}

	ref, err := p.registry.Resolve(req.ActorURN)
	if err != nil {
		p.metrics.DispatchDropped(ReasonUnknownIdentity)
		log.Warn("no actor for request", slog.Bool("nack", p.nack))
		if p.nack {
			p.nackUnknown(log, req)
		}
		return err
	}

	if err := ref.Tell(req); err != nil {
		reason := ReasonActorStopped
		if errors.Is(err, actor.ErrMailboxFull) {
			reason = ReasonMailboxFull
		}
		p.metrics.DispatchDropped(reason)
		log.Warn("request not delivered", slog.String("reason", reason), slog.Any("error", err))
		return err
	}

	p.metrics.RequestDispatched(req.MessageType)
	log.Debug("request dispatched")
	return nil
}

func (p *Poller) nackUnknown(log *slog.Logger, req envelope.Request) {
	resp := req.Fail(envelope.CodeUnknownIdentity, "no actor registered as "+req.ActorURN)
	if err := p.registry.Tell(actor.ResponderID, resp); err != nil {
		log.Error("failed to hand nack to responder", slog.Any("error", err))
	}
}
