package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posada",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	holdsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "posada",
			Name:      "holds_created_total",
			Help:      "Room holds created.",
		},
	)

	holdsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "posada",
			Name:      "holds_released_total",
			Help:      "Room holds released or swept.",
		},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posada",
			Name:      "confirmations_total",
			Help:      "Hold confirmations by outcome.",
		},
		[]string{"outcome"},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posada",
			Name:      "cancellations_total",
			Help:      "Reservation cancellations by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, holdsCreated, holdsReleased, confirmations, cancellations)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncHoldCreated counts a newly created hold.
func IncHoldCreated() {
	holdsCreated.Inc()
}

// IncHoldReleased counts a released or expired-swept hold.
func IncHoldReleased() {
	holdsReleased.Inc()
}

// IncConfirmation counts a confirmation attempt outcome
// ("ok", "hold_invalid", "upstream_error", "unparseable").
func IncConfirmation(outcome string) {
	confirmations.WithLabelValues(outcome).Inc()
}

// IncCancellation counts a cancellation outcome ("ok", "rejected", "fault").
func IncCancellation(outcome string) {
	cancellations.WithLabelValues(outcome).Inc()
}
