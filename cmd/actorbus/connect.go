package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	natsadapter "github.com/codewandler/actorbus/adapters/nats"
	redisadapter "github.com/codewandler/actorbus/adapters/redis"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/proxy"
	"github.com/codewandler/actorbus/ports/kv"
)

const directoryBucket = "actorbus-directory"

// busConnector picks the adapter for cfg.Bus.Driver.
func busConnector(cfg proxy.Config, log *slog.Logger) (bus.Connector, error) {
	switch cfg.Bus.Driver {
	case "redis":
		return redisadapter.Connector(redisadapter.ConfigFrom(cfg.Bus, log)), nil
	case "nats":
		return natsadapter.BusConnector(natsadapter.BusConfig{
			Connect: natsadapter.ReuseConnection(natsadapter.ConnectConfig(cfg.Bus)),
			Log:     log,
		}), nil
	case "memory":
		return bus.NewHub().WithLog(log).Connector(), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
	}
}

// withRetry retries failed connects with exponential backoff for up to a
// minute or until ctx is done.
func withRetry(connect bus.Connector, log *slog.Logger) bus.Connector {
	return func(ctx context.Context) (bus.Bus, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxElapsedTime = time.Minute

		return backoff.RetryNotifyWithData[bus.Bus](
			func() (bus.Bus, error) { return connect(ctx) },
			backoff.WithContext(b, ctx),
			func(err error, wait time.Duration) {
				log.Warn("bus connect failed, retrying", slog.Any("error", err), slog.Duration("retry_in", wait))
			},
		)
	}
}

// directoryStore opens the kv store backing the actor directory. Only the
// nats and memory drivers have one.
func directoryStore(ctx context.Context, cfg proxy.Config) (kv.Store, error) {
	switch cfg.Bus.Driver {
	case "nats":
		store, err := natsadapter.NewKvStore(ctx, natsadapter.KvConfig{
			Connect: natsadapter.ConnectConfig(cfg.Bus),
			Bucket:  directoryBucket,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return kv.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("driver %q has no directory store", cfg.Bus.Driver)
	}
}
