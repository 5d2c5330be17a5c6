package bus

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	IdleInitialInterval = 50 * time.Microsecond
	IdleMaxInterval     = time.Millisecond
)

// NewIdleBackoff returns the backoff used between empty polls: it starts in
// the sub-millisecond range and never gives up.
func NewIdleBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = IdleInitialInterval
	b.MaxInterval = IdleMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Next polls sub until a data message arrives or ctx is done. Control
// messages are skipped. idle is reset whenever a message is received.
func Next(ctx context.Context, sub Subscription, idle backoff.BackOff) (Message, error) {
	if idle == nil {
		idle = NewIdleBackoff()
	}
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		msg, ok, err := sub.Poll()
		if err != nil {
			return Message{}, err
		}
		if ok {
			idle.Reset()
			if msg.Control {
				continue
			}
			return msg, nil
		}

		wait := idle.NextBackOff()
		if wait == backoff.Stop {
			wait = IdleMaxInterval
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Message{}, ctx.Err()
		case <-t.C:
		}
	}
}
