package executor

import (
	"context"
	"testing"
	"time"

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

func testParams() Params {
	return Params{
		Symbol:        "BTCUSDT",
		Leverage:      10,
		WorkingType:   exchange.WorkingMarkPrice,
		PollInterval:  time.Millisecond,
		ExecOffsetPct: 0.005,
		RunID:         "test",
	}
}

func buyRequest() OrderRequest {
	return OrderRequest{
		Side:       exchange.SideBuy,
		LimitPrice: 60000,
		MarginUSD:  1000,
		TPOffset:   1000,
		SLOffset:   300,
	}
}

func journalLevels(j *journal.Journal) map[journal.Level]int {
	out := make(map[journal.Level]int)
	for _, e := range j.Snapshot() {
		out[e.Level]++
	}
	return out
}

func journalMessages(j *journal.Journal) []string {
	entries := j.Snapshot()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func TestBuildPlan_BuyScenario(t *testing.T) {
	plan := BuildPlan(buyRequest(), testParams())

	assert.Equal(t, "0.167", plan.Quantity)
	assert.Equal(t, "60000.00", plan.LimitPrice)
	assert.Equal(t, "61000.00", plan.TakeProfit)
	assert.Equal(t, "59700.00", plan.StopLoss)
	assert.Equal(t, exchange.SideSell, plan.ExitSide)
	// Exit side is SELL, so exec prices lean below their triggers.
	assert.Equal(t, "60695.00", plan.TPExec)
	assert.Equal(t, "59401.50", plan.SLExec)
}

func TestBuildPlan_SellInvertsSigns(t *testing.T) {
	req := buyRequest()
	req.Side = exchange.SideSell
	plan := BuildPlan(req, testParams())

	assert.Equal(t, "59000.00", plan.TakeProfit)
	assert.Equal(t, "60300.00", plan.StopLoss)
	assert.Equal(t, exchange.SideBuy, plan.ExitSide)
	assert.Equal(t, "59295.00", plan.TPExec)
	assert.Equal(t, "60601.50", plan.SLExec)
}

func TestOrderRequest_Validate(t *testing.T) {
	assert.NoError(t, buyRequest().Validate())

	bad := buyRequest()
	bad.Side = "HOLD"
	assert.Error(t, bad.Validate())

	bad = buyRequest()
	bad.LimitPrice = 0
	assert.Error(t, bad.Validate())

	bad = buyRequest()
	bad.MarginUSD = -5
	assert.Error(t, bad.Validate())

	bad = buyRequest()
	bad.TPOffset = 0
	assert.Error(t, bad.Validate())

	bad = buyRequest()
	bad.SLOffset = 0
	assert.Error(t, bad.Validate())
}

func TestExecutor_PlacesBracketAfterFill(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.MatchedBy(func(req exchange.LimitOrderRequest) bool {
		return req.Side == exchange.SideBuy &&
			req.Quantity == "0.167" &&
			req.Price == "60000.00" &&
			req.ClientOrderID == "bracket-test-e"
	})).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID:     11,
		Status:      exchange.StatusFilled,
		ExecutedQty: "0.167",
		AvgPrice:    "60000.00",
		OrigQty:     "0.167",
	}, nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.MatchedBy(func(req exchange.ConditionalOrderRequest) bool {
		return req.Type == exchange.ConditionalTakeProfit &&
			req.Side == exchange.SideSell &&
			req.TriggerPrice == "61000.00" &&
			req.ExecPrice == "60695.00" &&
			req.Quantity == "0.167" &&
			req.ReduceOnly &&
			req.WorkingType == exchange.WorkingMarkPrice
	})).Return(int64(22), nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.MatchedBy(func(req exchange.ConditionalOrderRequest) bool {
		return req.Type == exchange.ConditionalStop &&
			req.Side == exchange.SideSell &&
			req.TriggerPrice == "59700.00" &&
			req.ExecPrice == "59401.50" &&
			req.ReduceOnly
	})).Return(int64(33), nil)

	err := ex.Execute(context.Background(), buyRequest())
	assert.NoError(t, err)

	msgs := journalMessages(j)
	assert.Contains(t, msgs, "Placing LIMIT BUY @ 60000.00 | qty: 0.167")
	assert.Contains(t, msgs, "Order 11 FILLED! avg price: 60000.00")
	assert.Contains(t, msgs, "All orders placed! Entry:11 TP:22 SL:33")

	gw.AssertExpectations(t)
}

func TestExecutor_RejectedEntryStopsRun(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID: 11,
		Status:  exchange.StatusRejected,
	}, nil)

	err := ex.Execute(context.Background(), buyRequest())

	var abort *exchange.SequenceAbortError
	assert.ErrorAs(t, err, &abort)
	assert.Equal(t, "awaiting_fill", abort.Stage)

	// One status probe, one ERROR entry, nothing placed after the rejection.
	gw.AssertNumberOfCalls(t, "GetOrderStatus", 1)
	gw.AssertNotCalled(t, "SubmitConditionalOrder", mock.Anything, mock.Anything)
	assert.Equal(t, 1, journalLevels(j)[journal.LevelError])
	assert.Contains(t, journalMessages(j), "Order ended with status: REJECTED")
}

func TestExecutor_EntrySubmitFailureSkipsPolling(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).
		Return(int64(0), &exchange.GatewayError{Op: "submit limit order", Code: -2019, Message: "Margin is insufficient."})

	err := ex.Execute(context.Background(), buyRequest())

	var abort *exchange.SequenceAbortError
	assert.ErrorAs(t, err, &abort)
	assert.Equal(t, "entry_submit", abort.Stage)
	gw.AssertNotCalled(t, "GetOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "SubmitConditionalOrder", mock.Anything, mock.Anything)
}

func TestExecutor_LeverageFailureAbortsBeforeEntry(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).
		Return(0, &exchange.GatewayError{Op: "set leverage", Code: -4028, Message: "Leverage is not valid"})

	err := ex.Execute(context.Background(), buyRequest())

	assert.Error(t, err)
	gw.AssertNotCalled(t, "SubmitLimitOrder", mock.Anything, mock.Anything)
}

func TestExecutor_InvalidRequestNeverReachesGateway(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	bad := buyRequest()
	bad.MarginUSD = 0
	err := ex.Execute(context.Background(), bad)

	assert.Error(t, err)
	gw.AssertNotCalled(t, "SetLeverage", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, journalLevels(j)[journal.LevelError])
}

func TestExecutor_PartialFillKeepsPolling(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID:     11,
		Status:      exchange.StatusPartiallyFilled,
		ExecutedQty: "0.100",
		OrigQty:     "0.167",
	}, nil).Once()
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID:     11,
		Status:      exchange.StatusFilled,
		ExecutedQty: "0.167",
		AvgPrice:    "59998.20",
		OrigQty:     "0.167",
	}, nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.Anything).Return(int64(22), nil).Once()
	gw.On("SubmitConditionalOrder", mock.Anything, mock.Anything).Return(int64(33), nil).Once()

	err := ex.Execute(context.Background(), buyRequest())
	assert.NoError(t, err)

	assert.Contains(t, journalMessages(j), "Order 11 partially filled: 0.100/0.167")
	assert.GreaterOrEqual(t, journalLevels(j)[journal.LevelWarn], 1)
	gw.AssertNumberOfCalls(t, "GetOrderStatus", 2)
}

func TestExecutor_PollErrorRetriesNextCycle(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).
		Return(exchange.OrderUpdate{}, &exchange.GatewayError{Op: "get order status", Message: "read timeout"}).Once()
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID:     11,
		Status:      exchange.StatusFilled,
		ExecutedQty: "0.167",
		AvgPrice:    "60000.00",
		OrigQty:     "0.167",
	}, nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.Anything).Return(int64(22), nil).Once()
	gw.On("SubmitConditionalOrder", mock.Anything, mock.Anything).Return(int64(33), nil).Once()

	err := ex.Execute(context.Background(), buyRequest())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, journalLevels(j)[journal.LevelWarn], 1)
	assert.Zero(t, journalLevels(j)[journal.LevelError])
}

func TestExecutor_FillTimeoutAborts(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	params := testParams()
	params.PollInterval = 5 * time.Millisecond
	params.FillTimeout = 25 * time.Millisecond
	ex := New(gw, j, nil, params)

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID: 11,
		Status:  exchange.StatusNew,
	}, nil)

	err := ex.Execute(context.Background(), buyRequest())

	var abort *exchange.SequenceAbortError
	assert.ErrorAs(t, err, &abort)
	assert.Equal(t, "awaiting_fill", abort.Stage)
	gw.AssertNotCalled(t, "SubmitConditionalOrder", mock.Anything, mock.Anything)
	assert.Equal(t, 1, journalLevels(j)[journal.LevelError])
}

func TestExecutor_SingleExitLegFailureAborts(t *testing.T) {
	gw := new(MockGateway)
	j := journal.New(journal.Config{}, nil)
	ex := New(gw, j, nil, testParams())

	gw.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(10, nil)
	gw.On("SubmitLimitOrder", mock.Anything, mock.Anything).Return(int64(11), nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", int64(11)).Return(exchange.OrderUpdate{
		OrderID:     11,
		Status:      exchange.StatusFilled,
		ExecutedQty: "0.167",
		AvgPrice:    "60000.00",
		OrigQty:     "0.167",
	}, nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.MatchedBy(func(req exchange.ConditionalOrderRequest) bool {
		return req.Type == exchange.ConditionalTakeProfit
	})).Return(int64(22), nil)
	gw.On("SubmitConditionalOrder", mock.Anything, mock.MatchedBy(func(req exchange.ConditionalOrderRequest) bool {
		return req.Type == exchange.ConditionalStop
	})).Return(int64(0), &exchange.GatewayError{Op: "submit conditional order", Code: -2021, Message: "Order would immediately trigger."})

	err := ex.Execute(context.Background(), buyRequest())

	var abort *exchange.SequenceAbortError
	assert.ErrorAs(t, err, &abort)
	assert.Equal(t, "placing_exits", abort.Stage)
	// The take-profit leg stays on the venue; cleanup is the reconciler's job.
	assert.Equal(t, 1, journalLevels(j)[journal.LevelError])
}
