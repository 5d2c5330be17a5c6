package bus

import (
	"context"
	"errors"
)

var (
	ErrClosed         = errors.New("bus: closed")
	ErrInvalidChannel = errors.New("bus: invalid channel name")
)

type (
	// Message is one delivery on a subscription. Control is set for broker
	// bookkeeping traffic (e.g. subscribe confirmations) that carries no user data.
	Message struct {
		Channel string
		Data    []byte
		Control bool
	}

	Subscription interface {
		Channel() string
		// Poll returns the next pending message without blocking. ok is false
		// if nothing is pending. After Unsubscribe, Poll returns ErrClosed.
		Poll() (msg Message, ok bool, err error)
		Unsubscribe() error
	}

	Bus interface {
		Publish(ctx context.Context, channel string, data []byte) error
		// Subscribe returns once the broker has registered the subscription,
		// so a message published afterwards is not missed.
		Subscribe(ctx context.Context, channel string) (Subscription, error)
		Close() error
	}

	// Connector opens a new, unshared connection.
	Connector func(ctx context.Context) (Bus, error)
)

func ValidateChannel(channel string) error {
	if channel == "" {
		return ErrInvalidChannel
	}
	return nil
}
