package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/actorbus/core/metrics"
	"github.com/codewandler/actorbus/core/proxy"
)

// proxyMetrics implements proxy.ProxyMetrics using Prometheus.
type proxyMetrics struct {
	dispatchedTotal *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	decodeFailed    *prometheus.CounterVec
	publishedTotal  *prometheus.CounterVec
	askDuration     *prometheus.HistogramVec
	asksTotal       *prometheus.CounterVec
}

func NewProxyMetrics(reg prometheus.Registerer) proxy.ProxyMetrics {
	m := &proxyMetrics{
		dispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_proxy_requests_dispatched_total",
			Help: "Total number of inbound requests handed to an actor",
		}, []string{"message_type"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_proxy_dispatch_dropped_total",
			Help: "Total number of inbound requests that could not be delivered",
		}, []string{"reason"}),

		decodeFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_proxy_decode_failed_total",
			Help: "Total number of envelopes that failed to decode",
		}, []string{"kind"}),

		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_proxy_responses_published_total",
			Help: "Total number of responses published by the responder",
		}, []string{"message_type"}),

		askDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actorbus_proxy_ask_duration_seconds",
			Help:    "Ask round trip time in seconds",
			Buckets: defaultBuckets,
		}, []string{"message_type"}),

		asksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_proxy_asks_total",
			Help: "Total number of asks by outcome",
		}, []string{"message_type", "outcome"}),
	}

	reg.MustRegister(
		m.dispatchedTotal,
		m.droppedTotal,
		m.decodeFailed,
		m.publishedTotal,
		m.askDuration,
		m.asksTotal,
	)

	return m
}

func (m *proxyMetrics) RequestDispatched(msgType string) {
	m.dispatchedTotal.WithLabelValues(msgType).Inc()
}

func (m *proxyMetrics) DispatchDropped(reason string) {
	m.droppedTotal.WithLabelValues(reason).Inc()
}

func (m *proxyMetrics) DecodeFailed(kind string) {
	m.decodeFailed.WithLabelValues(kind).Inc()
}

func (m *proxyMetrics) ResponsePublished(msgType string) {
	m.publishedTotal.WithLabelValues(msgType).Inc()
}

func (m *proxyMetrics) AskDuration(msgType string) metrics.Timer {
	return newTimer(m.askDuration.WithLabelValues(msgType))
}

func (m *proxyMetrics) AskCompleted(msgType string, outcome string) {
	m.asksTotal.WithLabelValues(msgType, outcome).Inc()
}

var _ proxy.ProxyMetrics = (*proxyMetrics)(nil)
