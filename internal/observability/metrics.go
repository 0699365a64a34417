// Package observability defines the Prometheus metrics exported by the
// notification engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatches counts dispatch attempts by final status (sent|failed).
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_dispatch_total", Help: "Dispatch attempts by outcome"},
		[]string{"status"},
	)

	// EventsProcessed counts change events consumed from the change feed.
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_change_events_total", Help: "Document change events processed"},
		[]string{"collection", "event"},
	)

	// APIRequests counts admin API requests by route pattern and status class.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_api_requests_total", Help: "Admin API requests"},
		[]string{"endpoint", "status"},
	)
)
