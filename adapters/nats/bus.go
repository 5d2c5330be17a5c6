package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/actorbus/core/bus"
)

type BusConfig struct {
	Connect Connector // required
	Log     *slog.Logger
	// InboxSize buffers each subscription. Defaults to bus.DefaultInboxSize.
	InboxSize int
}

// Bus is a bus.Bus on NATS core subjects. Channels map 1:1 to subjects.
type Bus struct {
	nc        *natsgo.Conn
	closeNc   closeFunc
	log       *slog.Logger
	inboxSize int

	mu   sync.Mutex
	subs map[*subscription]struct{}

	closed atomic.Bool
}

func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.Connect == nil {
		return nil, fmt.Errorf("nats: BusConfig.Connect is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = bus.DefaultInboxSize
	}

	nc, closeNc, err := cfg.Connect()
	if err != nil {
		return nil, err
	}

	return &Bus{
		nc:        nc,
		closeNc:   closeNc,
		log:       log.With(slog.String("bus", "nats")),
		inboxSize: cfg.InboxSize,
		subs:      make(map[*subscription]struct{}),
	}, nil
}

// BusConnector opens a new Bus on every call.
func BusConnector(cfg BusConfig) bus.Connector {
	return func(context.Context) (bus.Bus, error) {
		return NewBus(cfg)
	}
}

func (b *Bus) Publish(_ context.Context, channel string, data []byte) error {
	if b.closed.Load() {
		return bus.ErrClosed
	}
	if err := bus.ValidateChannel(channel); err != nil {
		return err
	}
	if err := b.nc.Publish(channel, data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe flushes the connection so the server has registered the
// subscription when it returns.
func (b *Bus) Subscribe(ctx context.Context, channel string) (bus.Subscription, error) {
	if b.closed.Load() {
		return nil, bus.ErrClosed
	}
	if err := bus.ValidateChannel(channel); err != nil {
		return nil, err
	}

	s := &subscription{
		bus:  b,
		ch:   make(chan *natsgo.Msg, b.inboxSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.Inbox = bus.NewInbox(channel, b.inboxSize, s.close)

	ns, err := b.nc.ChanSubscribe(channel, s.ch)
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", channel, err)
	}
	s.ns = ns
	if err := b.nc.FlushWithContext(ctx); err != nil {
		_ = ns.Unsubscribe()
		return nil, fmt.Errorf("nats: flush subscribe %s: %w", channel, err)
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
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
	b.closeNc()
	return nil
}

type subscription struct {
	*bus.Inbox
	bus  *Bus
	ns   *natsgo.Subscription
	ch   chan *natsgo.Msg
	stop chan struct{}
	done chan struct{}
}

// pump moves messages from the NATS channel into the inbox.
func (s *subscription) pump() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case m := <-s.ch:
			if !s.Deliver(bus.Message{Channel: m.Subject, Data: m.Data}) {
				s.bus.log.Warn("inbox full, dropping message", slog.String("channel", m.Subject))
			}
		}
	}
}

func (s *subscription) close() error {
	err := s.ns.Unsubscribe()
	close(s.stop)
	<-s.done

	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	if err != nil && s.bus.closed.Load() {
		return nil
	}
	return err
}

var _ bus.Bus = (*Bus)(nil)
