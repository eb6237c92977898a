package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwd_events_total",
			Help: "Provider callbacks handled, by event type",
		},
		[]string{"type"}, // sms|call|call_status
	)

	PushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwd_push_total",
			Help: "Push batches by outcome",
		},
		[]string{"outcome"}, // sent|skipped|failed
	)

	PushTokensPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fwd_push_tokens_pruned_total",
			Help: "Device tokens removed after the push service reported them unregistered",
		},
	)

	WebhookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwd_webhook_total",
			Help: "Outbound webhook calls by outcome",
		},
		[]string{"outcome"}, // sent|failed|skipped
	)

	PersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fwd_persist_failures_total",
			Help: "Failed flushes of a persisted collection",
		},
		[]string{"store"}, // messages|tokens
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fwd_breaker_state",
			Help: "Outbound sink breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"sink"}, // push|webhook
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			EventsTotal,
			PushTotal,
			PushTokensPruned,
			WebhookTotal,
			PersistFailures,
			BreakerState,
		)
	})
}
