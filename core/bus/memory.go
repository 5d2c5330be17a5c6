package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub is an in-process broker. Every [Hub.Connect] call returns an
// independent connection; messages published on one connection reach the
// subscriptions of all connections.
type Hub struct {
	mu  sync.RWMutex
	log *slog.Logger

	// channel -> subID -> inbox
	subs map[string]map[uint64]*Inbox

	seq       atomic.Uint64
	inboxSize int
}

func NewHub() *Hub {
	return &Hub{
		log:  slog.New(slog.DiscardHandler),
		subs: make(map[string]map[uint64]*Inbox),
	}
}

func (h *Hub) WithLog(log *slog.Logger) *Hub {
	h.log = log.With(slog.String("bus", "mem"))
	return h
}

// WithInboxSize sets the buffer of subscriptions created afterwards.
func (h *Hub) WithInboxSize(size int) *Hub {
	h.inboxSize = size
	return h
}

func (h *Hub) Connect() Bus {
	return &memConn{hub: h, subs: make(map[uint64]*Inbox)}
}

func (h *Hub) Connector() Connector {
	return func(context.Context) (Bus, error) { return h.Connect(), nil }
}

// Subscribers returns the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

func (h *Hub) publish(channel string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, in := range h.subs[channel] {
		// each subscriber owns its copy
		cp := append([]byte(nil), data...)
		if !in.Deliver(Message{Channel: channel, Data: cp}) {
			h.log.Warn("dropping message, inbox full", slog.String("channel", channel), slog.Uint64("sub", id))
		}
	}
}

func (h *Hub) subscribe(channel string) (uint64, *Inbox) {
	id := h.seq.Add(1)
	in := NewInbox(channel, h.inboxSize, func() error {
		h.unsubscribe(channel, id)
		return nil
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[uint64]*Inbox)
	}
	h.subs[channel][id] = in
	h.log.Debug("subscribe", slog.String("channel", channel), slog.Uint64("sub", id))
	return id, in
}

func (h *Hub) unsubscribe(channel string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[channel]; subs != nil {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.subs, channel)
		}
	}
	h.log.Debug("unsubscribed", slog.String("channel", channel), slog.Uint64("sub", id))
}

/* ---------------------- connection ---------------------- */

type memConn struct {
	hub *Hub

	mu     sync.Mutex
	closed bool
	subs   map[uint64]*Inbox
}

func (c *memConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *memConn) Publish(ctx context.Context, channel string, data []byte) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.hub.publish(channel, data)
	return nil
}

func (c *memConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ValidateChannel(channel); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	id, in := c.hub.subscribe(channel)
	c.subs[id] = in
	return &memSub{Inbox: in, conn: c, id: id}, nil
}

func (c *memConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, in := range subs {
		_ = in.Unsubscribe()
	}
	return nil
}

func (c *memConn) forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

type memSub struct {
	*Inbox
	conn *memConn
	id   uint64
}

func (s *memSub) Unsubscribe() error {
	s.conn.forget(s.id)
	return s.Inbox.Unsubscribe()
}

var _ Bus = (*memConn)(nil)
