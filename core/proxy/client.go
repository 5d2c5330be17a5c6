package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/envelope"
)

type ClientOptions struct {
	Config  Config
	Connect bus.Connector
	Log     *slog.Logger
	Metrics ProxyMetrics
	// Directory, if set, makes asks to unlisted identities fail with
	// actor.ErrUnknownIdentity without touching the bus.
	Directory *Directory
	// DefaultTimeout applies to asks with a timeout <= 0. Falls back to
	// Config.AskTimeout, then DefaultAskTimeout.
	DefaultTimeout time.Duration
	IdleBackoff    func() backoff.BackOff
}

// Client asks actors over the bus. It is safe for concurrent use; every ask
// uses its own response subscription on the shared connection.
type Client struct {
	cfg     Config
	conn    bus.Bus
	log     *slog.Logger
	metrics ProxyMetrics
	dir     *Directory
	timeout time.Duration
	idle    func() backoff.BackOff

	closeOnce sync.Once
	closeErr  error
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.Connect == nil {
		return nil, fmt.Errorf("%w: client needs a connector", ErrInvalidConfig)
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopProxyMetrics()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = opts.Config.AskTimeout
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultAskTimeout
	}
	if opts.IdleBackoff == nil {
		opts.IdleBackoff = bus.NewIdleBackoff
	}

	conn, err := opts.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("proxy: client connect: %w", err)
	}

	return &Client{
		cfg:     opts.Config,
		conn:    conn,
		log:     opts.Log.With(slog.String("component", "client")),
		metrics: opts.Metrics,
		dir:     opts.Directory,
		timeout: opts.DefaultTimeout,
		idle:    opts.IdleBackoff,
	}, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}

// Ask sends payload to the actor urn and decodes the response as OUT. A
// timeout <= 0 uses the client's default. It fails with ErrAskTimeout if no
// response arrives in time, with *RemoteError if the actor side answered
// with an error and with envelope.ErrDecode if the response is not an OUT.
func Ask[IN, OUT any](ctx context.Context, c *Client, urn string, payload IN, timeout time.Duration) (*OUT, error) {
	req, err := envelope.NewRequest(urn, payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.AskRaw(ctx, req, timeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, remoteError(resp)
	}
	out, err := envelope.Extract[OUT](resp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Tell publishes payload to the actor urn without waiting for a response.
func Tell[IN any](ctx context.Context, c *Client, urn string, payload IN) error {
	req, err := envelope.NewRequest(urn, payload)
	if err != nil {
		return err
	}
	return c.Publish(ctx, req)
}

// Publish sends req on the inbound channel.
func (c *Client) Publish(ctx context.Context, req envelope.Request) error {
	if err := c.checkDirectory(ctx, req.ActorURN); err != nil {
		return err
	}
	data, err := req.Encode()
	if err != nil {
		return err
	}
	return c.conn.Publish(ctx, c.cfg.InboundChannel, data)
}

// AskRaw sends req and returns the matching response envelope.
func (c *Client) AskRaw(ctx context.Context, req envelope.Request, timeout time.Duration) (resp envelope.Response, err error) {
	ctx, span := startSpan(ctx, "actorbus.ask", trace.SpanKindClient, req)
	timer := c.metrics.AskDuration(req.MessageType)
	defer func() {
		timer.ObserveDuration()
		c.metrics.AskCompleted(req.MessageType, outcome(resp, err))
		endSpan(span, err)
	}()

	return c.ask(ctx, req, timeout)
}

func (c *Client) ask(ctx context.Context, req envelope.Request, timeout time.Duration) (envelope.Response, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	if err := c.checkDirectory(ctx, req.ActorURN); err != nil {
		return envelope.Response{}, err
	}

	log := c.log.With(
		slog.String("urn", req.ActorURN),
		slog.String("message_id", req.MessageID),
		slog.String("message_type", req.MessageType),
	)

	// subscribe first; the response may arrive before Publish returns
	channel := c.cfg.ResponseChannel(req.MessageID)
	sub, err := c.conn.Subscribe(ctx, channel)
	if err != nil {
		return envelope.Response{}, fmt.Errorf("proxy: subscribe %s: %w", channel, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	data, err := req.Encode()
	if err != nil {
		return envelope.Response{}, err
	}
	if err := c.conn.Publish(ctx, c.cfg.InboundChannel, data); err != nil {
		return envelope.Response{}, fmt.Errorf("proxy: publish request: %w", err)
	}
	log.Debug("request published", slog.Duration("timeout", timeout))

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idle := c.idle()

	for {
		msg, err := bus.Next(waitCtx, sub, idle)
		if err != nil {
			if ctx.Err() != nil {
				return envelope.Response{}, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("ask timed out", slog.Duration("timeout", timeout))
				return envelope.Response{}, fmt.Errorf("%w: %s after %s", ErrAskTimeout, req.MessageID, timeout)
			}
			return envelope.Response{}, err
		}

		resp, err := envelope.DecodeResponse(msg.Data)
		if err != nil {
			c.metrics.DecodeFailed("response")
			return envelope.Response{}, err
		}
		if resp.MessageID != req.MessageID {
			log.Warn("ignoring response for another request", slog.String("got_message_id", resp.MessageID))
			continue
		}
		log.Debug("response received", slog.String("response_type", resp.MessageType))
		return resp, nil
	}
}

func (c *Client) checkDirectory(ctx context.Context, urn string) error {
	if c.dir == nil {
		return nil
	}
	ok, err := c.dir.Has(ctx, urn)
	if err != nil {
		return fmt.Errorf("proxy: directory: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", actor.ErrUnknownIdentity, urn)
	}
	return nil
}

func remoteError(resp envelope.Response) error {
	ec, err := envelope.Extract[envelope.ErrorContents](resp)
	if err != nil {
		return err
	}
	return &RemoteError{MessageID: resp.MessageID, Code: ec.Code, Message: ec.Message}
}

func outcome(resp envelope.Response, err error) string {
	switch {
	case err == nil && resp.IsError():
		return OutcomeRemoteError
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrAskTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
