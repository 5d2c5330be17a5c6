// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the actor runtime, the tickers and the bus proxy.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/actorbus/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30,
}

// AllMetrics bundles every implementation registered on one registerer.
type AllMetrics struct {
	Actor  *actorMetrics
	Ticker *tickerMetrics
	Proxy  *proxyMetrics
}

func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Actor:  NewActorMetrics(reg).(*actorMetrics),
		Ticker: NewTickerMetrics(reg).(*tickerMetrics),
		Proxy:  NewProxyMetrics(reg).(*proxyMetrics),
	}
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
