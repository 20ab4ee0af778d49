// Package metrics holds the Prometheus collectors of the service. They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// LedgerEntries counts completed ledger entries per transaction kind.
var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cashmine",
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Completed ledger entries by transaction kind.",
}, []string{"kind"})

// LedgerAmount sums the magnitude of completed entries per kind.
var LedgerAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cashmine",
	Subsystem: "ledger",
	Name:      "amount_total",
	Help:      "Sum of completed ledger entry amounts by transaction kind.",
}, []string{"kind"})

// Rejections counts business operations refused with a typed error.
var Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cashmine",
	Subsystem: "core",
	Name:      "rejections_total",
	Help:      "Operations rejected by error code.",
}, []string{"code"})

// ReconcileMismatches counts users whose balance disagrees with their ledger.
var ReconcileMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cashmine",
	Subsystem: "ledger",
	Name:      "reconcile_mismatches_total",
	Help:      "Users whose balance did not match the sum of completed transactions.",
})

// OutboxPending tracks the outbox backlog seen by the last sender pass.
var OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "cashmine",
	Subsystem: "outbox",
	Name:      "pending_messages",
	Help:      "Outbox messages waiting to be relayed.",
})

// HTTPDuration observes request latency per route and status.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cashmine",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

func ObserveEntry(kind string, amount decimal.Decimal) {
	LedgerEntries.WithLabelValues(kind).Inc()
	f, _ := amount.Float64()
	LedgerAmount.WithLabelValues(kind).Add(f)
}
