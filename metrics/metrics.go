// Package metrics provides Prometheus instrumentation for the dispense
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	DosesMissed        prometheus.Counter
	DosesRescheduled   prometheus.Counter
	DosesConfirmed     prometheus.Counter
	OrphansPruned      prometheus.Counter
	StockKeysPruned    prometheus.Counter
	PointerPublishes   prometheus.Counter
	PointerClears      prometheus.Counter
	PointerUnchanged   prometheus.Counter
	RemindersSent      prometheus.Counter
	RemindersThrottled prometheus.Counter
	ReconcileDuration  prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		DosesMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doses_missed_total",
			Help: "Total doses marked missed by reconciliation",
		}),
		DosesRescheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doses_rescheduled_total",
			Help: "Total catch-up occurrences inserted",
		}),
		DosesConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doses_confirmed_total",
			Help: "Total doses confirmed taken",
		}),
		OrphansPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_orphans_pruned_total",
			Help: "Total orphaned ledger records deleted",
		}),
		StockKeysPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_keys_pruned_total",
			Help: "Total stale stock keys removed",
		}),
		PointerPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "next_schedule_publishes_total",
			Help: "Total next-schedule pointer writes",
		}),
		PointerClears: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "next_schedule_clears_total",
			Help: "Total next-schedule pointer removals",
		}),
		PointerUnchanged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "next_schedule_unchanged_total",
			Help: "Total checks where the pointer already matched",
		}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total reminder emails sent",
		}),
		RemindersThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_throttled_total",
			Help: "Total reminders rejected by the resend cooldown",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Per-subject reconciliation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.DosesMissed,
		m.DosesRescheduled,
		m.DosesConfirmed,
		m.OrphansPruned,
		m.StockKeysPruned,
		m.PointerPublishes,
		m.PointerClears,
		m.PointerUnchanged,
		m.RemindersSent,
		m.RemindersThrottled,
		m.ReconcileDuration,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
