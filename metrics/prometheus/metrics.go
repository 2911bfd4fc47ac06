// Package prometheus provides Prometheus metrics for sessionkit sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sessionkit"

var (
	// pendingQueueDepth is a gauge of requests waiting for reconnection.
	pendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_queue_depth",
			Help:      "Number of analysis requests queued while disconnected",
		},
	)

	// droppedRequestsTotal is a counter of requests evicted by backpressure.
	droppedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_requests_total",
			Help:      "Total analysis requests dropped by the drop-oldest queue policy",
		},
		[]string{"modality"},
	)

	// eventsSentTotal is a counter of outbound events by kind.
	eventsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_sent_total",
			Help:      "Total events dispatched to the analysis backend",
		},
		[]string{"event", "status"}, // status: success, error
	)

	// eventsReceivedTotal is a counter of inbound events by kind.
	eventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total events delivered by the analysis backend",
		},
		[]string{"event"},
	)

	// reconnectsTotal is a counter of reconnection attempts.
	reconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total channel reconnection attempts",
		},
		[]string{"outcome"}, // outcome: success, failure, exhausted
	)

	// subscriberPanicsTotal is a counter of isolated subscriber failures.
	subscriberPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_panics_total",
			Help:      "Total subscriber callbacks that panicked during dispatch",
		},
		[]string{"event"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		pendingQueueDepth,
		droppedRequestsTotal,
		eventsSentTotal,
		eventsReceivedTotal,
		reconnectsTotal,
		subscriberPanicsTotal,
	}
)

// SetPendingQueueDepth records the current pending queue length.
func SetPendingQueueDepth(depth int) {
	pendingQueueDepth.Set(float64(depth))
}

// RecordDroppedRequest records one request evicted by backpressure.
func RecordDroppedRequest(modality string) {
	droppedRequestsTotal.WithLabelValues(modality).Inc()
}

// RecordEventSent records one outbound event dispatch.
func RecordEventSent(event, status string) {
	eventsSentTotal.WithLabelValues(event, status).Inc()
}

// RecordEventReceived records one inbound event delivery.
func RecordEventReceived(event string) {
	eventsReceivedTotal.WithLabelValues(event).Inc()
}

// RecordReconnect records a reconnection attempt outcome.
func RecordReconnect(outcome string) {
	reconnectsTotal.WithLabelValues(outcome).Inc()
}

// RecordSubscriberPanic records one isolated subscriber failure.
func RecordSubscriberPanic(event string) {
	subscriberPanicsTotal.WithLabelValues(event).Inc()
}
