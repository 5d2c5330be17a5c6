// Package redis implements the bus port on Redis pub/sub.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/proxy"
)

type BusConfig struct {
	// Addr is host:port of the Redis server.
	Addr     string
	Password string
	DB       int
	Log      *slog.Logger
	// InboxSize buffers each subscription. Defaults to bus.DefaultInboxSize.
	InboxSize int
}

// ConfigFrom maps the bridge configuration onto a BusConfig.
func ConfigFrom(cfg proxy.BusConfig, log *slog.Logger) BusConfig {
	return BusConfig{Addr: cfg.Addr(), Log: log}
}

// Bus is a bus.Bus on Redis pub/sub. Every Bus owns its client; every
// subscription owns one pub/sub connection.
type Bus struct {
	client    *goredis.Client
	log       *slog.Logger
	inboxSize int

	mu   sync.Mutex
	subs map[*subscription]struct{}

	closed atomic.Bool
}

// Connect pings the server before returning the Bus.
func Connect(ctx context.Context, cfg BusConfig) (*Bus, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: BusConfig.Addr is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = bus.DefaultInboxSize
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}

	return &Bus{
		client:    client,
		log:       log.With(slog.String("bus", "redis"), slog.String("addr", cfg.Addr)),
		inboxSize: cfg.InboxSize,
		subs:      make(map[*subscription]struct{}),
	}, nil
}

// Connector opens a new Bus on every call.
func Connector(cfg BusConfig) bus.Connector {
	return func(ctx context.Context) (bus.Bus, error) {
		return Connect(ctx, cfg)
	}
}

func (b *Bus) Publish(ctx context.Context, channel string, data []byte) error {
	if b.closed.Load() {
		return bus.ErrClosed
	}
	if err := bus.ValidateChannel(channel); err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe waits for the server's subscribe confirmation.
func (b *Bus) Subscribe(ctx context.Context, channel string) (bus.Subscription, error) {
	if b.closed.Load() {
		return nil, bus.ErrClosed
	}
	if err := bus.ValidateChannel(channel); err != nil {
		return nil, err
	}

	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s := &subscription{bus: b, ps: ps, cancel: cancel, done: make(chan struct{})}
	s.Inbox = bus.NewInbox(channel, b.inboxSize, s.close)

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump(pumpCtx)
	return s, nil
}

func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return b.client.Close()
}

type subscription struct {
	*bus.Inbox
	bus    *Bus
	ps     *goredis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// pump reads from the pub/sub connection until the subscription is closed.
// Subscribe confirmations and pongs are delivered as control messages.
func (s *subscription) pump(ctx context.Context) {
	defer close(s.done)
	log := s.bus.log.With(slog.String("channel", s.Channel()))
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		raw, err := s.ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, goredis.ErrClosed) {
				return
			}
			wait := retry.NextBackOff()
			log.Warn("receive failed", slog.Any("error", err), slog.Duration("retry_in", wait))
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}
		retry.Reset()

		var msg bus.Message
		switch m := raw.(type) {
		case *goredis.Message:
			msg = bus.Message{Channel: m.Channel, Data: []byte(m.Payload)}
		case *goredis.Subscription:
			msg = bus.Message{Channel: m.Channel, Control: true}
		case *goredis.Pong:
			msg = bus.Message{Channel: s.Channel(), Control: true}
		default:
			continue
		}
		if !s.Deliver(msg) && !msg.Control {
			log.Warn("inbox full, dropping message")
		}
	}
}

func (s *subscription) close() error {
	s.cancel()
	err := s.ps.Close()
	<-s.done

	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	return err
}

var _ bus.Bus = (*Bus)(nil)
