package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks order placement attempts.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	attempts *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})
	reg.MustRegister(duration, attempts)
	return &CheckoutMetrics{duration: duration, attempts: attempts}
}

// Checkout results.
const (
	CheckoutResultPlaced            = "placed"
	CheckoutResultInsufficientStock = "insufficient_stock"
	CheckoutResultInvalid           = "invalid"
	CheckoutResultError             = "error"
)

// Observe records one checkout attempt with its duration.
func (c *CheckoutMetrics) Observe(result string, duration time.Duration) {
	if c == nil || c.attempts == nil {
		return
	}
	label := normalizeLabel(result)
	c.attempts.WithLabelValues(label).Inc()
	c.duration.WithLabelValues(label).Observe(duration.Seconds())
}
