// Package metrics holds the Prometheus collectors of the reminder service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reminder_bot"

// Metrics exposes collectors for ingestion and dispatch. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	created        prometheus.Counter
	rejected       *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	deleteFailures prometheus.Counter
	fetchFailures  prometheus.Counter
	purged         prometheus.Counter
	tickDuration   prometheus.Histogram
	lastDue        prometheus.Gauge
}

// MustNew constructs Metrics and registers them with reg (the default
// registerer when nil). Registration errors panic, like promauto.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "reminders_created_total",
			Help:      "Reminders accepted and persisted.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "reminders_rejected_total",
			Help:      "Submissions rejected before persistence.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Delivery attempts by outcome.",
		}, []string{"result"}),
		deleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "delete_failures_total",
			Help:      "Reminders that could not be removed after delivery.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "fetch_failures_total",
			Help:      "Ticks that failed to query due reminders.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "purged_total",
			Help:      "Abandoned reminders removed by the janitor.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one dispatch tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "last_tick_due",
			Help:      "Number of due reminders found by the last tick.",
		}),
	}
	reg.MustRegister(
		m.created, m.rejected, m.deliveries, m.deleteFailures,
		m.fetchFailures, m.purged, m.tickDuration, m.lastDue,
	)
	return m
}

func (m *Metrics) ReminderCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

func (m *Metrics) ReminderRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// Delivery records one send attempt; ok=false counts a transport failure.
func (m *Metrics) Delivery(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) DeleteFailed() {
	if m == nil {
		return
	}
	m.deleteFailures.Inc()
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

// Tick records a finished dispatch tick.
func (m *Metrics) Tick(d time.Duration, due int) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
	m.lastDue.Set(float64(due))
}
