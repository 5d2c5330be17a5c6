package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/ports/kv"
)

// DirectoryEntry is stored per registered actor.
type DirectoryEntry struct {
	URN          string    `json:"urn"`
	Node         string    `json:"node,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

type DirectoryOptions struct {
	Store kv.Store
	// Node is recorded with every entry, e.g. the host name of the process.
	Node string
	Log  *slog.Logger
	// Timeout bounds each store operation. Defaults to 5s.
	Timeout time.Duration
}

// Directory publishes the identities of a registry into a kv.Store so that
// clients in other processes can fail fast on asks to unknown actors.
type Directory struct {
	store   kv.Store
	node    string
	log     *slog.Logger
	timeout time.Duration

	// concurrent checks for one urn share a single store read
	flight singleflight.Group
}

func NewDirectory(opts DirectoryOptions) *Directory {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Directory{
		store:   opts.Store,
		node:    opts.Node,
		log:     opts.Log.With(slog.String("component", "directory")),
		timeout: opts.Timeout,
	}
}

// Key maps urn to a store key. URNs contain characters that are not valid in
// every store's key space, so they are base64url encoded.
func (d *Directory) Key(urn string) string {
	return "actors." + base64.RawURLEncoding.EncodeToString([]byte(urn))
}

// Lookup fails with actor.ErrUnknownIdentity if urn is not listed.
func (d *Directory) Lookup(ctx context.Context, urn string) (DirectoryEntry, error) {
	e, err := kv.Get[DirectoryEntry](ctx, d.store, d.Key(urn))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return e, fmt.Errorf("%w: %s", actor.ErrUnknownIdentity, urn)
		}
		return e, fmt.Errorf("proxy: directory lookup %s: %w", urn, err)
	}
	return e, nil
}

func (d *Directory) Has(ctx context.Context, urn string) (bool, error) {
	// the read is shared, so no single caller's cancellation may end it
	ch := d.flight.DoChan(urn, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		return kv.Has(readCtx, d.store, d.Key(urn))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *Directory) Add(ctx context.Context, urn string) error {
	return kv.Put(ctx, d.store, d.Key(urn), DirectoryEntry{
		URN:          urn,
		Node:         d.node,
		RegisteredAt: time.Now().UTC(),
	}, kv.PutOptions{})
}

func (d *Directory) Remove(ctx context.Context, urn string) error {
	return d.store.Delete(ctx, d.Key(urn))
}

// Attach lists every identity already in reg and then follows its changes
// until the returned detach func is called. Changes are written to the store
// in order on a separate goroutine; detach waits for pending writes.
func (d *Directory) Attach(ctx context.Context, reg *actor.Registry) (detach func(), err error) {
	s := &directorySync{dir: d, wake: make(chan struct{}, 1), done: make(chan struct{})}
	cancelWatch := reg.Watch(s.enqueue)

	for _, id := range reg.IDs() {
		if err := d.Add(ctx, id); err != nil {
			cancelWatch()
			return nil, fmt.Errorf("proxy: directory attach: %w", err)
		}
	}

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelWatch()
			s.close()
			<-s.done
		})
	}, nil
}

type directorySync struct {
	dir *Directory

	mu     sync.Mutex
	queue  []actor.RegistryEvent
	closed bool

	wake chan struct{}
	done chan struct{}
}

func (s *directorySync) enqueue(ev actor.RegistryEvent) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *directorySync) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *directorySync) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *directorySync) run() {
	defer close(s.done)
	for range s.wake {
		s.mu.Lock()
		batch, closed := s.queue, s.closed
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			s.apply(ev)
		}
		if closed {
			return
		}
	}
}

func (s *directorySync) apply(ev actor.RegistryEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.dir.timeout)
	defer cancel()

	var err error
	switch ev.Kind {
	case actor.Registered:
		err = s.dir.Add(ctx, ev.ID)
	case actor.Unregistered:
		err = s.dir.Remove(ctx, ev.ID)
	}
	if err != nil {
		s.dir.log.Warn(
			"directory update failed",
			slog.String("urn", ev.ID),
			slog.String("event", ev.Kind.String()),
			slog.Any("error", err),
		)
	}
}
