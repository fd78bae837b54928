// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// IDsAllocated tracks sequence ids issued per sequence name.
	IDsAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_ids_allocated_total",
			Help: "Total sequence ids allocated",
		},
		[]string{"sequence"},
	)

	// MessagesAppended tracks messages durably written.
	MessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_appended_total",
			Help: "Total messages appended",
		},
	)

	// ProjectorApplied tracks derived-view updates applied by the projector.
	ProjectorApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projector_updates_applied_total",
			Help: "Derived-view updates applied from append events",
		},
		[]string{"status"},
	)

	// SSEConnectionsActive tracks active live-tail connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
