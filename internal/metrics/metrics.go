// Package metrics exposes the Prometheus collectors of the booking
// service.  Collectors are registered once on the default registry; the
// Monitor methods are nil-safe so components can run without one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking state machine transitions by outcome",
		},
		[]string{"transition", "outcome"},
	)

	payments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment confirmations by outcome",
		},
		[]string{"outcome"},
	)

	refunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_refunds_total",
			Help: "Refunds issued for captured payments that could not be finalised",
		},
		[]string{"reason", "outcome"},
	)

	unitsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_units_sold_total",
			Help: "Ticket units taken out of inventory by paid bookings",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// Monitor records service metrics.
type Monitor struct{}

func NewMonitor() *Monitor { return &Monitor{} }

// TrackTransition counts a booking transition attempt.
func (m *Monitor) TrackTransition(transition, outcome string) {
	if m == nil {
		return
	}
	bookingTransitions.WithLabelValues(transition, outcome).Inc()
}

// TrackPayment counts a confirmation outcome; on success units is the
// quantity removed from inventory.
func (m *Monitor) TrackPayment(outcome string, units int) {
	if m == nil {
		return
	}
	payments.WithLabelValues(outcome).Inc()
	if units > 0 {
		unitsSold.Add(float64(units))
	}
}

// TrackRefund counts a refund attempt.
func (m *Monitor) TrackRefund(reason, outcome string) {
	if m == nil {
		return
	}
	refunds.WithLabelValues(reason, outcome).Inc()
}

// SetBreakerState publishes a breaker state as a gauge value.
func (m *Monitor) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	breakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveRequest records one HTTP request.
func (m *Monitor) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// TrackRateLimited counts a rejected request.
func (m *Monitor) TrackRateLimited(route string) {
	if m == nil {
		return
	}
	rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
