package proxy

import "github.com/codewandler/actorbus/core/metrics"

// ProxyMetrics is implemented by adapters/prometheus. All methods are
// thread-safe.
type ProxyMetrics interface {
	// inbound
	RequestDispatched(msgType string)
	DispatchDropped(reason string)
	DecodeFailed(kind string)
	ResponsePublished(msgType string)

	// outbound
	AskDuration(msgType string) metrics.Timer
	AskCompleted(msgType string, outcome string)
}

// Drop reasons and ask outcomes used as metric labels.
const (
	ReasonUnknownIdentity  = "unknown_identity"
	ReasonReservedIdentity = "reserved_identity"
	ReasonMailboxFull      = "mailbox_full"
	ReasonActorStopped     = "actor_stopped"

	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeRemoteError = "remote_error"
	OutcomeError       = "error"
)

type nopProxyMetrics struct{}

func (nopProxyMetrics) RequestDispatched(string)         {}
func (nopProxyMetrics) DispatchDropped(string)           {}
func (nopProxyMetrics) DecodeFailed(string)              {}
func (nopProxyMetrics) ResponsePublished(string)         {}
func (nopProxyMetrics) AskDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopProxyMetrics) AskCompleted(string, string)      {}

func NopProxyMetrics() ProxyMetrics { return nopProxyMetrics{} }
