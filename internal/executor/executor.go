// Package executor runs one bracket order sequence to completion: set
// leverage, submit the entry limit order, poll until it fills, then attach
// the take-profit and stop-loss conditionals. Every step is reported to the
// journal; a failure at any step aborts the run with no retry. Residual
// exchange state after an abort is left to the reconciler.
package executor

import (
	"context"
	"strings"
	"time"

	"bracket/internal/gateway/exchange"
	"bracket/internal/journal"
	"bracket/internal/metrics"
)

type Executor struct {
	gw      exchange.Gateway
	journal *journal.Journal
	metrics *metrics.Metrics
	params  Params
}

func New(gw exchange.Gateway, j *journal.Journal, m *metrics.Metrics, p Params) *Executor {
	if p.PollInterval <= 0 {
		p.PollInterval = 5 * time.Second
	}
	if p.WorkingType == "" {
		p.WorkingType = exchange.WorkingMarkPrice
	}
	return &Executor{gw: gw, journal: j, metrics: m, params: p}
}

// Execute runs the full sequence. Progress and failures surface through the
// journal; the returned error restates the abort cause for callers that want
// it, but nothing is retried.
func (e *Executor) Execute(ctx context.Context, req OrderRequest) error {
	if err := req.Validate(); err != nil {
		e.journal.Errorf("Rejected order request: %v", err)
		return e.fail("validate", err)
	}
	plan := BuildPlan(req, e.params)
	e.metrics.OrderStarted()

	e.journal.Append(journal.LevelInfo, strings.Repeat("─", 40))
	e.journal.Infof("New %s order initiated", req.Side)
	e.journal.Infof("Symbol: %s | Leverage: %dx | Margin: $%s | TP±%s | SL±%s",
		e.params.Symbol, e.params.Leverage, trimNum(req.MarginUSD), trimNum(req.TPOffset), trimNum(req.SLOffset))

	lev, err := e.gw.SetLeverage(ctx, e.params.Symbol, e.params.Leverage)
	if err != nil {
		e.journal.Errorf("Failed to set leverage: %v", err)
		return e.fail("configuring", err)
	}
	e.journal.Successf("Leverage set to %dx for %s", lev, e.params.Symbol)

	e.journal.Infof("Placing LIMIT %s @ %s | qty: %s", req.Side, plan.LimitPrice, plan.Quantity)
	entryID, err := e.gw.SubmitLimitOrder(ctx, exchange.LimitOrderRequest{
		Symbol:        e.params.Symbol,
		Side:          req.Side,
		Quantity:      plan.Quantity,
		Price:         plan.LimitPrice,
		ClientOrderID: e.clientID("e"),
	})
	if err != nil {
		e.journal.Errorf("Failed to place LIMIT %s: %v", req.Side, err)
		return e.fail("entry_submit", err)
	}
	e.journal.Successf("LIMIT %s placed | orderId: %d", req.Side, entryID)

	if err := e.awaitFill(ctx, entryID); err != nil {
		return err
	}
	e.metrics.OrderFilled()

	e.journal.Infof("Placing TAKE_PROFIT %s @ %s (exec %s)", plan.ExitSide, plan.TakeProfit, plan.TPExec)
	tpID, err := e.gw.SubmitConditionalOrder(ctx, exchange.ConditionalOrderRequest{
		Symbol:        e.params.Symbol,
		Side:          plan.ExitSide,
		Type:          exchange.ConditionalTakeProfit,
		TriggerPrice:  plan.TakeProfit,
		ExecPrice:     plan.TPExec,
		Quantity:      plan.Quantity,
		ReduceOnly:    true,
		WorkingType:   e.params.WorkingType,
		ClientOrderID: e.clientID("tp"),
	})
	if err != nil {
		e.journal.Errorf("Failed to place TAKE_PROFIT: %v", err)
		return e.fail("placing_exits", err)
	}
	e.journal.Successf("TAKE_PROFIT placed @ %s | orderId: %d", plan.TakeProfit, tpID)
	e.metrics.ConditionalPlaced()

	e.journal.Infof("Placing STOP %s @ %s (exec %s)", plan.ExitSide, plan.StopLoss, plan.SLExec)
	slID, err := e.gw.SubmitConditionalOrder(ctx, exchange.ConditionalOrderRequest{
		Symbol:        e.params.Symbol,
		Side:          plan.ExitSide,
		Type:          exchange.ConditionalStop,
		TriggerPrice:  plan.StopLoss,
		ExecPrice:     plan.SLExec,
		Quantity:      plan.Quantity,
		ReduceOnly:    true,
		WorkingType:   e.params.WorkingType,
		ClientOrderID: e.clientID("sl"),
	})
	if err != nil {
		e.journal.Errorf("Failed to place STOP: %v", err)
		return e.fail("placing_exits", err)
	}
	e.journal.Successf("STOP placed @ %s | orderId: %d", plan.StopLoss, slID)
	e.metrics.ConditionalPlaced()

	e.journal.Successf("All orders placed! Entry:%d TP:%d SL:%d", entryID, tpID, slID)
	e.journal.Append(journal.LevelInfo, strings.Repeat("─", 40))
	return nil
}

// awaitFill polls order status on the configured interval until the entry
// fills or lands in a terminal non-fill state. Unknown statuses keep the loop
// alive. A failed poll is retried next cycle rather than aborting the run.
func (e *Executor) awaitFill(ctx context.Context, orderID int64) error {
	e.journal.Infof("Waiting for order %d to fill...", orderID)
	pollCtx := ctx
	if e.params.FillTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, e.params.FillTimeout)
		defer cancel()
	}
	for {
		update, err := e.gw.GetOrderStatus(ctx, e.params.Symbol, orderID)
		if err != nil {
			e.journal.Warnf("Order %d: %v", orderID, &exchange.TransientPollError{Op: "status", Err: err})
		} else {
			e.journal.Infof("Order %d status: %s", orderID, update.Status)
			switch {
			case update.Status.Filled():
				e.journal.Successf("Order %d FILLED! avg price: %s", orderID, update.AvgPrice)
				return nil
			case update.Status.TerminalNonFill():
				e.journal.Errorf("Order ended with status: %s", update.Status)
				return e.fail("awaiting_fill", statusError(update.Status))
			case update.Status == exchange.StatusPartiallyFilled:
				e.journal.Warnf("Order %d partially filled: %s/%s", orderID, update.ExecutedQty, update.OrigQty)
			}
		}
		if !sleepWithContext(pollCtx, e.params.PollInterval) {
			if ctx.Err() != nil {
				e.journal.Errorf("Order %d wait interrupted: %v", orderID, ctx.Err())
				return e.fail("awaiting_fill", ctx.Err())
			}
			e.journal.Errorf("Order %d not filled within %s, giving up", orderID, e.params.FillTimeout)
			return e.fail("awaiting_fill", context.DeadlineExceeded)
		}
	}
}

func (e *Executor) fail(stage string, reason error) error {
	e.metrics.OrderAborted(stage)
	return &exchange.SequenceAbortError{Stage: stage, Reason: reason}
}

func (e *Executor) clientID(leg string) string {
	if e.params.RunID == "" {
		return ""
	}
	return "bracket-" + e.params.RunID + "-" + leg
}

type statusError exchange.OrderStatus

func (s statusError) Error() string { return "order ended with status " + string(s) }

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
