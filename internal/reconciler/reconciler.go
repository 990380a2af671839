// Package reconciler keeps venue state consistent after the fact: once the
// position for the pair is flat, any conditional order still resting on the
// book is an orphan and gets cancelled. Open/close transitions are reported
// for visibility only and never drive the cleanup decision.
package reconciler

import (
	"context"
	"math"
	"time"

	"bracket/internal/gateway/exchange"
	"bracket/internal/journal"
	"bracket/internal/metrics"
	"bracket/internal/scheduler"
)

const defaultTickTimeout = 8 * time.Second

type Reconciler struct {
	gw       exchange.Gateway
	journal  *journal.Journal
	metrics  *metrics.Metrics
	symbol   string
	interval time.Duration

	tickTimeout time.Duration
	prevSize    float64
	seenTick    bool
}

func New(gw exchange.Gateway, j *journal.Journal, m *metrics.Metrics, symbol string, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Reconciler{
		gw:          gw,
		journal:     j,
		metrics:     m,
		symbol:      symbol,
		interval:    interval,
		tickTimeout: defaultTickTimeout,
	}
}

// Run blocks until ctx is cancelled, reconciling once per interval. The first
// pass runs immediately.
func (r *Reconciler) Run(ctx context.Context) {
	s := scheduler.NewIntervalScheduler(ctx, r.interval)
	s.RunImmediately = true
	s.Start(func() {
		r.Tick(ctx)
	})
}

// Tick runs one reconcile pass. Read failures are reported and swallowed so
// the loop always reaches the next tick; a failed pass leaves the previous
// size comparison untouched.
func (r *Reconciler) Tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, r.tickTimeout)
	defer cancel()
	r.metrics.Tick()

	size, err := r.gw.GetPositionSize(tickCtx, r.symbol)
	if err != nil {
		r.journal.Warnf("Reconcile: %v", &exchange.TransientPollError{Op: "position", Err: err})
		r.metrics.TickError()
		return
	}
	absSize := math.Abs(size)

	conditionals, err := r.gw.ListOpenConditionalOrders(tickCtx, r.symbol)
	if err != nil {
		r.journal.Warnf("Reconcile: %v", &exchange.TransientPollError{Op: "conditional orders", Err: err})
		r.metrics.TickError()
		return
	}

	if absSize == 0 && len(conditionals) > 0 {
		r.journal.Infof("Position flat with %d conditional order(s) still open, cleaning up", len(conditionals))
		for _, order := range conditionals {
			if err := r.gw.CancelConditionalOrder(tickCtx, r.symbol, order.AlgoID); err != nil {
				r.journal.Errorf("Failed to cancel orphan %s %d: %v", order.Type, order.AlgoID, err)
				continue
			}
			r.journal.Successf("Cancelled orphan %s %d @ %s", order.Type, order.AlgoID, order.TriggerPrice)
			r.metrics.OrphanCancelled()
		}
	}

	if r.seenTick {
		switch {
		case r.prevSize == 0 && absSize != 0:
			r.journal.Infof("Position opened: %s size %v", r.symbol, absSize)
		case r.prevSize != 0 && absSize == 0:
			r.journal.Infof("Position closed: %s", r.symbol)
		}
	}
	r.prevSize = absSize
	r.seenTick = true
	r.metrics.SetPositionSize(absSize)
}
