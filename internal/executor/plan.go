package executor

import (
	"fmt"
	"math"
	"time"

	"bracket/internal/gateway/exchange"

	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

// Params are the per-pair settings a run executes under. They are resolved
// from the active profile when the run is spawned and stay fixed afterwards.
type Params struct {
	Symbol        string
	Leverage      int
	WorkingType   exchange.WorkingType
	PollInterval  time.Duration
	FillTimeout   time.Duration // zero means wait forever
	ExecOffsetPct float64       // conditional exec price offset from its trigger
	RunID         string
}

// OrderRequest 描述一次开仓请求。字段在执行开始后不可变。
type OrderRequest struct {
	Side       exchange.Side
	LimitPrice float64
	MarginUSD  float64
	TPOffset   float64
	SLOffset   float64
}

func (r OrderRequest) Validate() error {
	if !r.Side.IsValid() {
		return fmt.Errorf("side must be BUY or SELL, got %q", string(r.Side))
	}
	if r.LimitPrice <= 0 {
		return fmt.Errorf("limit price must be positive")
	}
	if r.MarginUSD <= 0 {
		return fmt.Errorf("margin must be positive")
	}
	if r.TPOffset <= 0 {
		return fmt.Errorf("take-profit offset must be positive")
	}
	if r.SLOffset <= 0 {
		return fmt.Errorf("stop-loss offset must be positive")
	}
	return nil
}

// Plan is the precomputed wire view of one bracket: entry quantity plus all
// price levels, formatted to venue precision (quantity 3 decimals, prices 2).
type Plan struct {
	Quantity   string
	LimitPrice string
	TakeProfit string
	StopLoss   string
	TPExec     string
	SLExec     string
	ExitSide   exchange.Side
}

// BuildPlan derives the bracket from a request. Quantity is margin times
// leverage over the limit price. Trigger prices shift by the configured
// offsets in the direction of the side. Exec prices lean past their trigger
// toward the closing side so the resting limit fills once triggered.
func BuildPlan(req OrderRequest, p Params) Plan {
	price := decFromFloat(req.LimitPrice)
	margin := decFromFloat(req.MarginUSD)
	leverage := decimal.NewFromInt(int64(p.Leverage))
	qty := margin.Mul(leverage).Div(price)

	tpOff := decFromFloat(req.TPOffset)
	slOff := decFromFloat(req.SLOffset)
	var tp, sl decimal.Decimal
	if req.Side == exchange.SideBuy {
		tp = price.Add(tpOff)
		sl = price.Sub(slOff)
	} else {
		tp = price.Sub(tpOff)
		sl = price.Add(slOff)
	}

	exitSide := req.Side.Opposite()
	offset := decFromFloat(p.ExecOffsetPct)
	var factor decimal.Decimal
	if exitSide == exchange.SideSell {
		factor = decOne.Sub(offset)
	} else {
		factor = decOne.Add(offset)
	}

	return Plan{
		Quantity:   qty.StringFixed(3),
		LimitPrice: price.StringFixed(2),
		TakeProfit: tp.StringFixed(2),
		StopLoss:   sl.StringFixed(2),
		TPExec:     tp.Mul(factor).StringFixed(2),
		SLExec:     sl.Mul(factor).StringFixed(2),
		ExitSide:   exitSide,
	}
}

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

// trimNum renders a float the way the operator typed it, without trailing
// zeros, for journal lines like "Margin: $2000".
func trimNum(val float64) string {
	return decFromFloat(val).String()
}
