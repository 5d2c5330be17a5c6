// Package nats implements the bus and kv ports on NATS core pub/sub and
// JetStream key-value buckets.
package nats

import (
	"fmt"
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/actorbus/core/proxy"
)

type closeFunc = func()

// Connector dials NATS. The returned close func releases the connection.
type Connector func() (nc *natsgo.Conn, close closeFunc, err error)

// ReuseConnection shares one connection between all callers of the returned
// Connector. It is closed when the last lease is released.
func ReuseConnection(connect Connector) Connector {
	var mu sync.Mutex
	var nc *natsgo.Conn
	var closeCon closeFunc
	var leased atomic.Int64
	var weakClose closeFunc = func() {
		mu.Lock()
		defer mu.Unlock()
		if leased.Add(-1) == 0 {
			closeCon()
			nc = nil
		}
	}
	return func() (*natsgo.Conn, closeFunc, error) {
		mu.Lock()
		defer mu.Unlock()
		if nc == nil {
			var err error
			nc, closeCon, err = connect()
			if err != nil {
				return nil, nil, err
			}
		}
		leased.Add(1)
		var once sync.Once
		return nc, func() { once.Do(weakClose) }, nil
	}
}

func ConnectURL(natsURL string, opts ...natsgo.Option) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		nc, err := natsgo.Connect(
			natsURL,
			append([]natsgo.Option{natsgo.MaxReconnects(3)}, opts...)...,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("nats: connect %s: %w", natsURL, err)
		}
		return nc, func() { nc.Close() }, nil
	}
}

// ConnectConfig dials nats://host:port from the bridge configuration.
func ConnectConfig(cfg proxy.BusConfig) Connector {
	return ConnectURL("nats://" + cfg.Addr())
}
