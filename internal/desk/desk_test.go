package desk

import (
	"context"
	"strings"
	"testing"
	"time"

	"bracket/internal/config"
	"bracket/internal/config/loader"
	"bracket/internal/gateway/exchange"
	"bracket/internal/journal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) SetLeverage(ctx context.Context, symbol string, leverage int) (int, error) {
	args := m.Called(ctx, symbol, leverage)
	return args.Int(0), args.Error(1)
}

func (m *MockGateway) SubmitLimitOrder(ctx context.Context, req exchange.LimitOrderRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) GetOrderStatus(ctx context.Context, symbol string, orderID int64) (exchange.OrderUpdate, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Get(0).(exchange.OrderUpdate), args.Error(1)
}

func (m *MockGateway) SubmitConditionalOrder(ctx context.Context, req exchange.ConditionalOrderRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) ListOpenOrders(ctx context.Context, symbol string) ([]exchange.OpenOrder, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.OpenOrder), args.Error(1)
}

func (m *MockGateway) ListOpenConditionalOrders(ctx context.Context, symbol string) ([]exchange.ConditionalOrder, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.ConditionalOrder), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	args := m.Called(ctx, symbol, orderID)
	return args.Error(0)
}

func (m *MockGateway) CancelConditionalOrder(ctx context.Context, symbol string, algoID int64) error {
	args := m.Called(ctx, symbol, algoID)
	return args.Error(0)
}

func (m *MockGateway) GetPositionSize(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

// staticProfiles 返回固定快照，代替文件驱动的 ProfileLoader。
type staticProfiles struct {
	snap loader.Snapshot
}

func (s staticProfiles) Snapshot() loader.Snapshot { return s.snap }

func testTrading() config.TradingConfig {
	return config.TradingConfig{
		Symbol:              "BTCUSDT",
		Leverage:            10,
		MarginUSD:           2000,
		TPOffset:            1000,
		SLOffset:            300,
		WorkingType:         "MARK_PRICE",
		PollIntervalSeconds: 1,
		ExecOffsetPct:       0.005,
	}
}

func TestStartOrderRejectsBadInput(t *testing.T) {
	gw := new(MockGateway)
	d := New(context.Background(), gw, journal.New(journal.Config{}, nil), nil, nil, testTrading())

	_, err := d.StartOrder(OrderIntake{Side: "HOLD", LimitPrice: 60000})
	assert.ErrorContains(t, err, "side must be BUY or SELL")

	_, err = d.StartOrder(OrderIntake{Side: "BUY"})
	assert.ErrorContains(t, err, "limit_price")

	gw.AssertNotCalled(t, "SetLeverage", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartOrderRunsFullSequence(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).
		Return(exchange.OrderUpdate{OrderID: 11, Status: exchange.StatusFilled, AvgPrice: "60000.00"}, nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.Anything).Return(int64(22), nil).Once()
	gw.On("SubmitConditionalOrder", mock.Anything, mock.Anything).Return(int64(33), nil).Once()

	j := journal.New(journal.Config{}, nil)
	sub := j.Subscribe()
	defer j.Unsubscribe(sub)

	d := New(context.Background(), gw, j, nil, nil, testTrading())
	runID, err := d.StartOrder(OrderIntake{Side: "buy", LimitPrice: 60000})
	assert.NoError(t, err)
	assert.Len(t, runID, 8, "run id is the first uuid group")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.C:
			if strings.HasPrefix(e.Message, "All orders placed!") {
				gw.AssertExpectations(t)
				return
			}
		case <-deadline:
			t.Fatal("run never completed")
		}
	}
}

func TestStartOrderResolvesDefaultsFromProfileThenConfig(t *testing.T) {
	profiles := staticProfiles{snap: loader.Snapshot{
		Active: "steady",
		Profiles: map[string]loader.Profile{
			"steady": {Name: "steady", MarginUSD: 800, Leverage: 7},
		},
	}}
	d := New(context.Background(), nil, nil, nil, profiles, testTrading())

	req, leverage := d.resolve(OrderIntake{LimitPrice: 60000}, exchange.SideBuy)
	assert.Equal(t, 800.0, req.MarginUSD, "margin comes from the active profile")
	assert.Equal(t, 7, leverage, "leverage comes from the active profile")
	assert.Equal(t, 1000.0, req.TPOffset, "profile has no tp_offset, trading config fills it")
	assert.Equal(t, 300.0, req.SLOffset)

	// 请求显式给出的值永远优先。
	req, leverage = d.resolve(OrderIntake{LimitPrice: 60000, MarginUSD: 50, TPOffset: 70, SLOffset: 30}, exchange.SideBuy)
	assert.Equal(t, 50.0, req.MarginUSD)
	assert.Equal(t, 70.0, req.TPOffset)
	assert.Equal(t, 30.0, req.SLOffset)
	assert.Equal(t, 7, leverage)
}

func TestStartOrderWithoutProfilesUsesTradingConfig(t *testing.T) {
	d := New(context.Background(), nil, nil, nil, nil, testTrading())

	req, leverage := d.resolve(OrderIntake{LimitPrice: 60000}, exchange.SideSell)
	assert.Equal(t, 2000.0, req.MarginUSD)
	assert.Equal(t, 1000.0, req.TPOffset)
	assert.Equal(t, 300.0, req.SLOffset)
	assert.Equal(t, 10, leverage)
}

func TestCancelOrderRoutesByKind(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CancelOrder", mock.Anything, "BTCUSDT", int64(11)).Return(nil)
	gw.On("CancelConditionalOrder", mock.Anything, "BTCUSDT", int64(22)).Return(nil)

	j := journal.New(journal.Config{}, nil)
	d := New(context.Background(), gw, j, nil, nil, testTrading())

	assert.NoError(t, d.CancelOrder(context.Background(), 11, KindRegular))
	assert.NoError(t, d.CancelOrder(context.Background(), 22, KindConditional))
	assert.ErrorContains(t, d.CancelOrder(context.Background(), 33, "weird"), "kind must be")
	assert.ErrorContains(t, d.CancelOrder(context.Background(), 0, KindRegular), "order_id")

	gw.AssertExpectations(t)
	msgs := j.Snapshot()
	assert.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Message, "Order 11 cancelled")
}

func TestOpenOrdersAndPositionPassThrough(t *testing.T) {
	gw := new(MockGateway)
	gw.On("ListOpenOrders", mock.Anything, "BTCUSDT").
		Return([]exchange.OpenOrder{{OrderID: 11, Symbol: "BTCUSDT"}}, nil)
	gw.On("ListOpenConditionalOrders", mock.Anything, "BTCUSDT").
		Return([]exchange.ConditionalOrder{{AlgoID: 22, Symbol: "BTCUSDT"}}, nil)
	gw.On("GetPositionSize", mock.Anything, "BTCUSDT").Return(-0.5, nil)

	d := New(context.Background(), gw, nil, nil, nil, testTrading())

	view, err := d.OpenOrders(context.Background())
	assert.NoError(t, err)
	assert.Len(t, view.Orders, 1)
	assert.Len(t, view.Conditional, 1)

	pos, err := d.Position(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, PositionView{Symbol: "BTCUSDT", Size: -0.5}, pos)
}
