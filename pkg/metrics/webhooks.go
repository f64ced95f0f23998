package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes recorded per event type.
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeRejected  = "rejected"
	WebhookOutcomeFailed    = "failed"
)

// WebhookMetrics counts gateway webhook deliveries by type and outcome.
type WebhookMetrics struct {
	events *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Gateway webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(events)
	return &WebhookMetrics{events: events}
}

// IncEvent increments the counter for the given event type and outcome.
func (w *WebhookMetrics) IncEvent(eventType, outcome string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
