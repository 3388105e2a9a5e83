package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinema_checkouts_total",
			Help: "Checkout attempts by processor and outcome",
		},
		[]string{"processor", "outcome"},
	)

	WebhooksReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinema_webhooks_reconciled_total",
			Help: "Webhook reconciliations by resulting status and outcome",
		},
		[]string{"status", "outcome"},
	)

	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinema_tickets_issued_total",
			Help: "Tickets issued",
		},
	)

	SeatsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinema_seats_committed_total",
			Help: "Seats marked occupied",
		},
	)

	SeatsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinema_seats_released_total",
			Help: "Seats released back to inventory",
		},
	)

	ConsistencyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinema_consistency_errors_total",
			Help: "Approved payments whose seats could not be committed",
		},
	)

	ProcessorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinema_processor_request_seconds",
			Help:    "Latency of payment processor calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"processor", "operation"},
	)

	PendingReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinema_pending_payments_reaped_total",
			Help: "Stale pending payments cancelled by the reaper",
		},
	)
)
