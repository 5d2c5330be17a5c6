package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/actorbus/ports/kv"
)

type KvConfig struct {
	Connect Connector // required
	Bucket  string    // required
	// TTL expires every entry of the bucket. Per-key TTLs in
	// kv.PutOptions are not supported.
	TTL time.Duration
}

// KvStore is a kv.Store on a JetStream key-value bucket.
type KvStore struct {
	kv      jetstream.KeyValue
	closeNc closeFunc
}

func NewKvStore(ctx context.Context, cfg KvConfig) (*KvStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("nats: KvConfig.Bucket is required")
	}
	if cfg.Connect == nil {
		return nil, errors.New("nats: KvConfig.Connect is required")
	}

	nc, closeNc, err := cfg.Connect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  cfg.Bucket,
		Storage: jetstream.MemoryStorage,
		TTL:     cfg.TTL,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("nats: kv bucket %s: %w", cfg.Bucket, err)
	}

	return &KvStore{kv: bucket, closeNc: closeNc}, nil
}

func (k *KvStore) Put(ctx context.Context, key string, entry kv.Entry, _ kv.PutOptions) error {
	if _, err := k.kv.Put(ctx, key, entry.Data); err != nil {
		return fmt.Errorf("nats: kv put %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	v, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return kv.Entry{}, kv.ErrNotFound
		}
		return kv.Entry{}, fmt.Errorf("nats: kv get %s: %w", key, err)
	}
	return kv.Entry{
		Data: v.Value(),
		Meta: map[string]any{"revision": v.Revision(), "created": v.Created()},
	}, nil
}

func (k *KvStore) Delete(ctx context.Context, key string) error {
	if err := k.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats: kv delete %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Close() { k.closeNc() }

var _ kv.Store = (*KvStore)(nil)
