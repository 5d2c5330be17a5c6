package bus

import (
	"sync"
	"sync/atomic"
)

const DefaultInboxSize = 1024

// Inbox is a bounded, non-blocking buffer that adapters use to implement
// [Subscription]. The broker side calls Deliver, the consumer side calls Poll.
type Inbox struct {
	channel string
	ch      chan Message
	closed  atomic.Bool
	once    sync.Once
	onClose func() error
	err     error
}

// NewInbox creates an inbox for channel. onClose, if set, runs once on
// Unsubscribe and typically removes the broker-side subscription.
func NewInbox(channel string, size int, onClose func() error) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{
		channel: channel,
		ch:      make(chan Message, size),
		onClose: onClose,
	}
}

func (i *Inbox) Channel() string { return i.channel }

// Deliver enqueues m. It returns false if the inbox is closed or full, in
// which case m is dropped.
func (i *Inbox) Deliver(m Message) bool {
	if i.closed.Load() {
		return false
	}
	select {
	case i.ch <- m:
		return true
	default:
		return false
	}
}

func (i *Inbox) Poll() (Message, bool, error) {
	if i.closed.Load() {
		return Message{}, false, ErrClosed
	}
	select {
	case m := <-i.ch:
		return m, true, nil
	default:
		return Message{}, false, nil
	}
}

func (i *Inbox) Unsubscribe() error {
	i.once.Do(func() {
		i.closed.Store(true)
		if i.onClose != nil {
			i.err = i.onClose()
		}
	})
	return i.err
}

var _ Subscription = (*Inbox)(nil)
