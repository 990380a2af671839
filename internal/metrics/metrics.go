// Package metrics exposes execution counters in Prometheus text format.
//
// Series:
//   - bracket_orders_started_total          – bracket runs started
//   - bracket_orders_filled_total           – entry orders that reached FILLED
//   - bracket_orders_aborted_total{stage}   – runs aborted, split by stage
//   - bracket_conditional_orders_total      – protective orders placed
//   - bracket_orphans_cancelled_total       – orphaned conditionals cancelled
//   - bracket_reconcile_ticks_total         – reconciler ticks run
//   - bracket_reconcile_tick_errors_total   – reconciler ticks that failed
//   - bracket_journal_entries_total{level}  – journal entries by level
//   - bracket_journal_dropped_total         – entries dropped by slow subscribers
//   - bracket_position_size                 – absolute position size (gauge)
//
// A nil *Metrics is a no-op so callers never guard their calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ordersStarted      prometheus.Counter
	ordersFilled       prometheus.Counter
	ordersAborted      *prometheus.CounterVec
	conditionalsPlaced prometheus.Counter
	orphansCancelled   prometheus.Counter
	ticks              prometheus.Counter
	tickErrors         prometheus.Counter
	journalEntries     *prometheus.CounterVec
	journalDropped     prometheus.Counter
	positionSize       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_orders_started_total",
			Help: "Bracket runs started",
		}),
		ordersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_orders_filled_total",
			Help: "Entry orders that reached FILLED",
		}),
		ordersAborted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bracket_orders_aborted_total",
				Help: "Bracket runs aborted, split by stage",
			},
			[]string{"stage"},
		),
		conditionalsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_conditional_orders_total",
			Help: "Protective conditional orders placed",
		}),
		orphansCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_orphans_cancelled_total",
			Help: "Orphaned conditional orders cancelled by the reconciler",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_reconcile_ticks_total",
			Help: "Reconciler ticks run",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_reconcile_tick_errors_total",
			Help: "Reconciler ticks that failed to read exchange state",
		}),
		journalEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bracket_journal_entries_total",
				Help: "Journal entries appended, split by level",
			},
			[]string{"level"},
		),
		journalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_journal_dropped_total",
			Help: "Journal entries dropped by slow subscribers",
		}),
		positionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bracket_position_size",
			Help: "Absolute position size observed on the last reconcile tick",
		}),
	}
	m.registry.MustRegister(
		m.ordersStarted, m.ordersFilled, m.ordersAborted,
		m.conditionalsPlaced, m.orphansCancelled, m.ticks, m.tickErrors,
		m.journalEntries, m.journalDropped, m.positionSize,
	)
	return m
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderStarted() {
	if m != nil {
		m.ordersStarted.Inc()
	}
}

func (m *Metrics) OrderFilled() {
	if m != nil {
		m.ordersFilled.Inc()
	}
}

func (m *Metrics) OrderAborted(stage string) {
	if m != nil {
		m.ordersAborted.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ConditionalPlaced() {
	if m != nil {
		m.conditionalsPlaced.Inc()
	}
}

func (m *Metrics) OrphanCancelled() {
	if m != nil {
		m.orphansCancelled.Inc()
	}
}

func (m *Metrics) Tick() {
	if m != nil {
		m.ticks.Inc()
	}
}

func (m *Metrics) TickError() {
	if m != nil {
		m.tickErrors.Inc()
	}
}

func (m *Metrics) SetPositionSize(size float64) {
	if m != nil {
		m.positionSize.Set(size)
	}
}

// JournalEntry and JournalDropped satisfy journal.Observer.

func (m *Metrics) JournalEntry(level string) {
	if m != nil {
		m.journalEntries.WithLabelValues(level).Inc()
	}
}

func (m *Metrics) JournalDropped() {
	if m != nil {
		m.journalDropped.Inc()
	}
}
