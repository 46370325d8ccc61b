// Package metrics defines the Prometheus collectors for the chat pipeline.
// Collectors register on the default registry at init and are served by the
// /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var ChatRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "heysheets",
		Name:      "chat_requests_total",
		Help:      "Chat pipeline requests by entry path and outcome",
	},
	[]string{"path", "outcome"}, // path: chat, direct, mcp; outcome: function, clarification, reply, error
)

var ClassifierLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "heysheets",
		Name:      "classifier_seconds",
		Help:      "Latency of classifier chat completions",
		// Focus on sub-10s buckets with a few higher ones for visibility.
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
	},
	[]string{"model", "status"}, // status: ok, error
)

var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "heysheets",
		Name:      "cache_requests_total",
		Help:      "Cache tier lookups by result",
	},
	[]string{"tier", "result"}, // tier: memory, persistent; result: hit, miss, error
)

var SheetFetchLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "heysheets",
		Name:      "sheet_fetch_seconds",
		Help:      "Latency of spreadsheet source operations",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
	},
	[]string{"operation", "status"}, // operation: read, append, update
)

var Bookings = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "heysheets",
		Name:      "bookings_total",
		Help:      "Booking creation attempts by outcome",
	},
	[]string{"status"}, // status: confirmed, rejected, error
)

func init() {
	prometheus.MustRegister(ChatRequests, ClassifierLatency, CacheRequests, SheetFetchLatency, Bookings)
}
