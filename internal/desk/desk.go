// Package desk glues the HTTP surface to order execution: it resolves
// request defaults, spawns one executor goroutine per accepted order and
// passes order/position queries through to the venue gateway.
package desk

import (
	"context"
	"fmt"
	"strings"

	"bracket/internal/config"
	"bracket/internal/config/loader"
	"bracket/internal/executor"
	"bracket/internal/gateway/exchange"
	"bracket/internal/journal"
	"bracket/internal/logger"
	"bracket/internal/metrics"

	"github.com/google/uuid"
)

// ProfileSource 提供当前生效的下单参数档位。
type ProfileSource interface {
	Snapshot() loader.Snapshot
}

// OrderIntake 是 HTTP 层提交的开仓请求。可选字段为 0 时
// 依次回退到 active profile 和 trading 配置。
type OrderIntake struct {
	Side       string  `json:"side"`
	LimitPrice float64 `json:"limit_price"`
	MarginUSD  float64 `json:"margin_usd"`
	TPOffset   float64 `json:"tp_offset"`
	SLOffset   float64 `json:"sl_offset"`
}

// OpenOrdersView bundles both order kinds for the open-orders endpoint.
type OpenOrdersView struct {
	Orders      []exchange.OpenOrder        `json:"orders"`
	Conditional []exchange.ConditionalOrder `json:"conditional"`
}

// PositionView 当前净持仓。
type PositionView struct {
	Symbol string  `json:"symbol"`
	Size   float64 `json:"size"`
}

// Order cancel kinds accepted by CancelOrder.
const (
	KindRegular     = "regular"
	KindConditional = "conditional"
)

type Desk struct {
	ctx      context.Context
	gw       exchange.Gateway
	journal  *journal.Journal
	metrics  *metrics.Metrics
	profiles ProfileSource
	trading  config.TradingConfig
}

// New 构造 Desk。ctx 约束所有由它派发的执行 goroutine。
func New(ctx context.Context, gw exchange.Gateway, j *journal.Journal, m *metrics.Metrics, profiles ProfileSource, trading config.TradingConfig) *Desk {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Desk{
		ctx:      ctx,
		gw:       gw,
		journal:  j,
		metrics:  m,
		profiles: profiles,
		trading:  trading,
	}
}

// StartOrder 校验请求、补全缺省参数并异步启动一次完整的挂单序列。
// 返回的 run id 用于追踪 journal 与 clientOrderId。
func (d *Desk) StartOrder(in OrderIntake) (string, error) {
	side := exchange.Side(strings.ToUpper(strings.TrimSpace(in.Side)))
	if !side.IsValid() {
		return "", fmt.Errorf("side must be BUY or SELL, got %q", in.Side)
	}
	if in.LimitPrice <= 0 {
		return "", fmt.Errorf("limit_price must be > 0")
	}

	req, leverage := d.resolve(in, side)
	if err := req.Validate(); err != nil {
		return "", err
	}

	runID := strings.SplitN(uuid.NewString(), "-", 2)[0]
	params := executor.Params{
		Symbol:        d.trading.Symbol,
		Leverage:      leverage,
		WorkingType:   exchange.WorkingType(d.trading.WorkingType),
		PollInterval:  d.trading.PollInterval(),
		FillTimeout:   d.trading.FillTimeout(),
		ExecOffsetPct: d.trading.ExecOffsetPct,
		RunID:         runID,
	}
	exec := executor.New(d.gw, d.journal, d.metrics, params)
	go func() {
		// 失败路径已逐条写入 journal，这里只留一条进程日志。
		if err := exec.Execute(d.ctx, req); err != nil {
			logger.Warnf("Desk: run %s ended: %v", runID, err)
		}
	}()
	return runID, nil
}

// resolve 合并请求、active profile 与 trading 配置，返回最终请求与杠杆。
func (d *Desk) resolve(in OrderIntake, side exchange.Side) (executor.OrderRequest, int) {
	req := executor.OrderRequest{
		Side:       side,
		LimitPrice: in.LimitPrice,
		MarginUSD:  in.MarginUSD,
		TPOffset:   in.TPOffset,
		SLOffset:   in.SLOffset,
	}
	leverage := 0
	if d.profiles != nil {
		if p, ok := d.profiles.Snapshot().ActiveProfile(); ok {
			if req.MarginUSD <= 0 {
				req.MarginUSD = p.MarginUSD
			}
			if req.TPOffset <= 0 {
				req.TPOffset = p.TPOffset
			}
			if req.SLOffset <= 0 {
				req.SLOffset = p.SLOffset
			}
			leverage = p.Leverage
		}
	}
	if req.MarginUSD <= 0 {
		req.MarginUSD = d.trading.MarginUSD
	}
	if req.TPOffset <= 0 {
		req.TPOffset = d.trading.TPOffset
	}
	if req.SLOffset <= 0 {
		req.SLOffset = d.trading.SLOffset
	}
	if leverage <= 0 {
		leverage = d.trading.Leverage
	}
	return req, leverage
}

// OpenOrders 返回交易对上的普通挂单与条件挂单。
func (d *Desk) OpenOrders(ctx context.Context) (OpenOrdersView, error) {
	orders, err := d.gw.ListOpenOrders(ctx, d.trading.Symbol)
	if err != nil {
		return OpenOrdersView{}, err
	}
	conditional, err := d.gw.ListOpenConditionalOrders(ctx, d.trading.Symbol)
	if err != nil {
		return OpenOrdersView{}, err
	}
	return OpenOrdersView{Orders: orders, Conditional: conditional}, nil
}

// CancelOrder 手动撤单。kind 为 regular 或 conditional。
func (d *Desk) CancelOrder(ctx context.Context, orderID int64, kind string) error {
	if orderID <= 0 {
		return fmt.Errorf("order_id must be > 0")
	}
	var err error
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindRegular, "":
		err = d.gw.CancelOrder(ctx, d.trading.Symbol, orderID)
	case KindConditional:
		err = d.gw.CancelConditionalOrder(ctx, d.trading.Symbol, orderID)
	default:
		return fmt.Errorf("kind must be %s or %s, got %q", KindRegular, KindConditional, kind)
	}
	if err != nil {
		return err
	}
	d.journal.Successf("Order %d cancelled (manual)", orderID)
	return nil
}

// Position 返回当前净持仓大小（带方向）。
func (d *Desk) Position(ctx context.Context) (PositionView, error) {
	size, err := d.gw.GetPositionSize(ctx, d.trading.Symbol)
	if err != nil {
		return PositionView{}, err
	}
	return PositionView{Symbol: d.trading.Symbol, Size: size}, nil
}

// Journal 暴露给日志类端点使用。
func (d *Desk) Journal() *journal.Journal {
	return d.journal
}

// ProfileSnapshot 返回当前档位快照；未配置 loader 时为零值。
func (d *Desk) ProfileSnapshot() loader.Snapshot {
	if d.profiles == nil {
		return loader.Snapshot{}
	}
	return d.profiles.Snapshot()
}

// Trading 返回请求缺省值兜底用的 trading 配置。
func (d *Desk) Trading() config.TradingConfig {
	return d.trading
}
