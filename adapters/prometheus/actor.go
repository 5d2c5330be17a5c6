package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/metrics"
)

// actorMetrics implements actor.ActorMetrics using Prometheus.
type actorMetrics struct {
	messageDuration *prometheus.HistogramVec
	messagesTotal   *prometheus.CounterVec
	panicTotal      *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
	stoppedTotal    *prometheus.CounterVec
}

func NewActorMetrics(reg prometheus.Registerer) actor.ActorMetrics {
	m := &actorMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actorbus_actor_message_duration_seconds",
			Help:    "Message handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"message_type"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_actor_messages_total",
			Help: "Total number of messages processed",
		}, []string{"message_type", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_actor_panics_total",
			Help: "Total number of handler panics",
		}, []string{"message_type"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "actorbus_actor_mailbox_depth",
			Help: "Mailbox depth after the last dequeue",
		}, []string{"actor_id"}),

		stoppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actorbus_actor_stopped_total",
			Help: "Total number of actors stopped, by whether they failed",
		}, []string{"failed"}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.panicTotal,
		m.mailboxDepth,
		m.stoppedTotal,
	)

	return m
}

func (m *actorMetrics) MessageDuration(msgType string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(msgType))
}

func (m *actorMetrics) MessageProcessed(msgType string, success bool) {
	m.messagesTotal.WithLabelValues(msgType, boolToStr(success)).Inc()
}

func (m *actorMetrics) MessagePanic(msgType string) {
	m.panicTotal.WithLabelValues(msgType).Inc()
}

func (m *actorMetrics) MailboxDepth(actorID string, depth int) {
	m.mailboxDepth.WithLabelValues(actorID).Set(float64(depth))
}

// ActorStopped also drops the mailbox gauge of the actor.
func (m *actorMetrics) ActorStopped(actorID string, failed bool) {
	m.stoppedTotal.WithLabelValues(boolToStr(failed)).Inc()
	m.mailboxDepth.DeleteLabelValues(actorID)
}

var _ actor.ActorMetrics = (*actorMetrics)(nil)
