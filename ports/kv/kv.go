// Package kv is the key-value port used by the actor directory. Adapters
// live in adapters/nats (JetStream KV); MemStore serves tests and
// single-process setups.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("kv: not found")
)

type Entry struct {
	Data []byte
	Meta map[string]any
}

type PutOptions struct {
	// TTL of zero means the entry does not expire.
	TTL time.Duration
}

type Store interface {
	Put(ctx context.Context, key string, entry Entry, opts PutOptions) error
	Get(ctx context.Context, key string) (entry Entry, err error)
	Delete(ctx context.Context, key string) error
}

func Put[T any](ctx context.Context, store Store, key string, v T, opts PutOptions) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", key, err)
	}
	return store.Put(ctx, key, Entry{Data: data}, opts)
}

func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	entry, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	if err = json.Unmarshal(entry.Data, &out); err != nil {
		err = fmt.Errorf("kv: unmarshal %s: %w", key, err)
	}
	return
}

// Has reports whether key exists.
func Has(ctx context.Context, store Store, key string) (bool, error) {
	_, err := store.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
