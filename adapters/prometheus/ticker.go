package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/actorbus/core/metrics"
	"github.com/codewandler/actorbus/core/ticker"
)

// tickerMetrics implements ticker.Metrics using Prometheus.
type tickerMetrics struct {
	tickDuration *prometheus.HistogramVec
	ticksTotal   *prometheus.CounterVec
	lateness     *prometheus.HistogramVec
}

func NewTickerMetrics(reg prometheus.Registerer) ticker.Metrics {
	m := &tickerMetrics{
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actorbus_ticker_tick_duration_seconds",
			Help:    "Time spent in the tick action in seconds",
			Buckets: defaultBuckets,
		}, []string{"ticker"}),

		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_ticker_ticks_total",
			Help: "Total number of ticks fired",
		}, []string{"ticker"}),

		lateness: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actorbus_ticker_lateness_seconds",
			Help:    "Delay between the scheduled and the actual tick time in seconds",
			Buckets: defaultBuckets,
		}, []string{"ticker"}),
	}

	reg.MustRegister(m.tickDuration, m.ticksTotal, m.lateness)
	return m
}

func (m *tickerMetrics) TickDuration(name string) metrics.Timer {
	m.ticksTotal.WithLabelValues(name).Inc()
	return newTimer(m.tickDuration.WithLabelValues(name))
}

func (m *tickerMetrics) TickLateness(name string, late time.Duration) {
	m.lateness.WithLabelValues(name).Observe(late.Seconds())
}

var _ ticker.Metrics = (*tickerMetrics)(nil)
