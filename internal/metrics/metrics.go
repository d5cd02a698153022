// Package metrics exposes the Prometheus instrumentation for the event
// processing core: queue depth, per-status outcomes, retries, give-ups
// and the two timing phases the events table itself records.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the core's collectors. A nil *Metrics is valid and
// records nothing, so tests can run components unmetered.
type Metrics struct {
	QueueDepth        prometheus.Gauge
	EventsProcessed   *prometheus.CounterVec
	EventsRetried     prometheus.Counter
	EventsGivenUp     prometheus.Counter
	MessagesConsumed  *prometheus.CounterVec
	DependencyWait    prometheus.Histogram
	ProcessingSeconds prometheus.Histogram
}

// New creates and registers the core's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventcore_queue_depth",
			Help: "Events currently at rest in the in-process worker queue.",
		}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcore_events_processed_total",
			Help: "Events that reached a terminal status without exhausting their retry budget, by status.",
		}, []string{"status"}),
		EventsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcore_events_retried_total",
			Help: "Internal requeues after a dependency timeout or handler failure.",
		}),
		EventsGivenUp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcore_events_given_up_total",
			Help: "Events marked completed after exhausting their retry budget.",
		}),
		MessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcore_broker_messages_total",
			Help: "CDC messages consumed from the broker, by outcome.",
		}, []string{"outcome"}),
		DependencyWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventcore_dependency_wait_seconds",
			Help:    "Time spent polling for dependency resolution per attempt.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventcore_processing_seconds",
			Help:    "Wall-clock time from worker pickup to terminal status.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	reg.MustRegister(
		m.QueueDepth,
		m.EventsProcessed,
		m.EventsRetried,
		m.EventsGivenUp,
		m.MessagesConsumed,
		m.DependencyWait,
		m.ProcessingSeconds,
	)
	return m
}

// ObserveQueueDepth records the current in-process queue length.
func (m *Metrics) ObserveQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// ObserveProcessed counts a terminal transition.
func (m *Metrics) ObserveProcessed(status string, seconds float64) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(status).Inc()
	m.ProcessingSeconds.Observe(seconds)
}

// ObserveRetry counts an internal requeue.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.EventsRetried.Inc()
}

// ObserveGiveUp counts a retry-budget exhaustion.
func (m *Metrics) ObserveGiveUp() {
	if m == nil {
		return
	}
	m.EventsGivenUp.Inc()
}

// ObserveMessage counts a broker delivery by outcome
// (enqueued, dropped, decode_error).
func (m *Metrics) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.MessagesConsumed.WithLabelValues(outcome).Inc()
}

// ObserveDependencyWait records one dependency-poll attempt's duration.
func (m *Metrics) ObserveDependencyWait(seconds float64) {
	if m == nil {
		return
	}
	m.DependencyWait.Observe(seconds)
}
