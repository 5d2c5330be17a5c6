package actor

import "github.com/codewandler/actorbus/core/metrics"

// ActorMetrics is implemented by adapters/prometheus. All methods are
// thread-safe.
type ActorMetrics interface {
	MessageDuration(msgType string) metrics.Timer
	MessageProcessed(msgType string, success bool)
	MessagePanic(msgType string)

	MailboxDepth(actorID string, depth int)
	ActorStopped(actorID string, failed bool)
}

type nopActorMetrics struct{}

func (nopActorMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopActorMetrics) MessageProcessed(string, bool)        {}
func (nopActorMetrics) MessagePanic(string)                  {}
func (nopActorMetrics) MailboxDepth(string, int)             {}
func (nopActorMetrics) ActorStopped(string, bool)            {}

func NopActorMetrics() ActorMetrics { return nopActorMetrics{} }
