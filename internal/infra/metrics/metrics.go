package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for order admission and webhook
// processing. Registered once at startup against an injected registry.
type Metrics struct {
	Registry *prometheus.Registry

	OrdersAdmittedTotal prometheus.Counter
	OrdersRejectedTotal prometheus.Counter

	WebhookEventsTotal     prometheus.Counter
	WebhookProcessedTotal  prometheus.Counter
	WebhookFailedTotal     prometheus.Counter
	WebhookUnmatchedTotal  prometheus.Counter
	WebhookMalformedTotal  prometheus.Counter
	WebhookHandlerDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		OrdersAdmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_admitted_total",
			Help: "Total number of order mutations admitted by the validator",
		}),
		OrdersRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_rejected_total",
			Help: "Total number of order mutations rejected (validation or capacity)",
		}),
		WebhookEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of payment webhook notifications received",
		}),
		WebhookProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_events_processed_total",
			Help: "Total number of webhook notifications reconciled successfully",
		}),
		WebhookFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_events_failed_total",
			Help: "Total number of webhook notifications that exhausted all persistence strategies",
		}),
		WebhookUnmatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_events_unmatched_total",
			Help: "Total number of webhook notifications matching no order",
		}),
		WebhookMalformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_events_malformed_total",
			Help: "Total number of webhook notifications rejected by shape validation",
		}),
		WebhookHandlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_handler_duration_seconds",
			Help:    "Duration of the webhook HTTP handler (excludes async reconciliation)",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.Registry.MustRegister(
		m.OrdersAdmittedTotal,
		m.OrdersRejectedTotal,
		m.WebhookEventsTotal,
		m.WebhookProcessedTotal,
		m.WebhookFailedTotal,
		m.WebhookUnmatchedTotal,
		m.WebhookMalformedTotal,
		m.WebhookHandlerDuration,
	)

	return m
}
