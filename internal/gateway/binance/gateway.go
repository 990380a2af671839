package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bracket/internal/gateway/exchange"
	symbolpkg "bracket/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

// Gateway 基于 go-binance SDK 实现 exchange.Gateway（USDT 本位合约）。
type Gateway struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	if final.APIKey == "" || final.APISecret == "" {
		return nil, fmt.Errorf("binance api credentials are required")
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Gateway{
		cfg:    final,
		client: client,
	}, nil
}

func (g *Gateway) Name() string { return "binance" }

// BaseURL reports the endpoint in use, for the startup summary.
func (g *Gateway) BaseURL() string { return g.cfg.RESTBaseURL }

func (g *Gateway) SetLeverage(ctx context.Context, sym string, leverage int) (int, error) {
	res, err := g.client.NewChangeLeverageService().
		Symbol(cleanSymbol(sym)).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return 0, wrapAPIError("set leverage", err)
	}
	return res.Leverage, nil
}

func (g *Gateway) SubmitLimitOrder(ctx context.Context, req exchange.LimitOrderRequest) (int64, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(cleanSymbol(req.Symbol)).
		Side(sideType(req.Side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(req.Quantity).
		Price(req.Price)
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return 0, wrapAPIError("submit limit order", err)
	}
	return res.OrderID, nil
}

func (g *Gateway) GetOrderStatus(ctx context.Context, sym string, orderID int64) (exchange.OrderUpdate, error) {
	o, err := g.client.NewGetOrderService().
		Symbol(cleanSymbol(sym)).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return exchange.OrderUpdate{}, wrapAPIError("get order status", err)
	}
	return exchange.OrderUpdate{
		OrderID:     o.OrderID,
		Status:      exchange.OrderStatus(o.Status),
		ExecutedQty: o.ExecutedQuantity,
		AvgPrice:    o.AvgPrice,
		OrigQty:     o.OrigQuantity,
	}, nil
}

func (g *Gateway) SubmitConditionalOrder(ctx context.Context, req exchange.ConditionalOrderRequest) (int64, error) {
	// Stop-limit variants: StopPrice is the trigger, Price the resting limit.
	svc := g.client.NewCreateOrderService().
		Symbol(cleanSymbol(req.Symbol)).
		Side(sideType(req.Side)).
		Type(conditionalOrderType(req.Type)).
		StopPrice(req.TriggerPrice).
		Price(req.ExecPrice).
		Quantity(req.Quantity).
		WorkingType(workingType(req.WorkingType)).
		PriceProtect(true)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return 0, wrapAPIError("submit conditional order", err)
	}
	return res.OrderID, nil
}

func (g *Gateway) ListOpenOrders(ctx context.Context, sym string) ([]exchange.OpenOrder, error) {
	orders, err := g.client.NewListOpenOrdersService().
		Symbol(cleanSymbol(sym)).
		Do(ctx)
	if err != nil {
		return nil, wrapAPIError("list open orders", err)
	}
	out := make([]exchange.OpenOrder, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		if _, conditional := conditionalType(o.Type); conditional {
			continue
		}
		out = append(out, exchange.OpenOrder{
			OrderID:       o.OrderID,
			Symbol:        o.Symbol,
			Side:          exchange.Side(o.Side),
			Price:         o.Price,
			OrigQty:       o.OrigQuantity,
			ExecutedQty:   o.ExecutedQuantity,
			Status:        exchange.OrderStatus(o.Status),
			ClientOrderID: o.ClientOrderID,
		})
	}
	return out, nil
}

func (g *Gateway) ListOpenConditionalOrders(ctx context.Context, sym string) ([]exchange.ConditionalOrder, error) {
	orders, err := g.client.NewListOpenOrdersService().
		Symbol(cleanSymbol(sym)).
		Do(ctx)
	if err != nil {
		return nil, wrapAPIError("list open conditional orders", err)
	}
	out := make([]exchange.ConditionalOrder, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		condType, conditional := conditionalType(o.Type)
		if !conditional {
			continue
		}
		out = append(out, exchange.ConditionalOrder{
			AlgoID:       o.OrderID,
			Symbol:       o.Symbol,
			Side:         exchange.Side(o.Side),
			Type:         condType,
			TriggerPrice: o.StopPrice,
			Quantity:     o.OrigQuantity,
			ReduceOnly:   o.ReduceOnly,
		})
	}
	return out, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, sym string, orderID int64) error {
	_, err := g.client.NewCancelOrderService().
		Symbol(cleanSymbol(sym)).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return wrapAPIError("cancel order", err)
	}
	return nil
}

func (g *Gateway) CancelConditionalOrder(ctx context.Context, sym string, algoID int64) error {
	// Untriggered conditionals cancel through the same order endpoint.
	_, err := g.client.NewCancelOrderService().
		Symbol(cleanSymbol(sym)).
		OrderID(algoID).
		Do(ctx)
	if err != nil {
		return wrapAPIError("cancel conditional order", err)
	}
	return nil
}

func (g *Gateway) GetPositionSize(ctx context.Context, sym string) (float64, error) {
	clean := cleanSymbol(sym)
	positions, err := g.client.NewGetPositionRiskService().
		Symbol(clean).
		Do(ctx)
	if err != nil {
		return 0, wrapAPIError("get position size", err)
	}
	for _, p := range positions {
		if p == nil {
			continue
		}
		if strings.EqualFold(p.Symbol, clean) {
			return parseFloat(p.PositionAmt), nil
		}
	}
	return 0, nil
}

// cleanSymbol converts internal pair notation to the exchange form,
// e.g. BTC/USDT -> BTCUSDT.
func cleanSymbol(sym string) string {
	return symbolpkg.Exchange(sym)
}

func sideType(s exchange.Side) futures.SideType {
	if s == exchange.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func conditionalOrderType(t exchange.ConditionalType) futures.OrderType {
	if t == exchange.ConditionalStop {
		return futures.OrderTypeStop
	}
	return futures.OrderTypeTakeProfit
}

func conditionalType(t futures.OrderType) (exchange.ConditionalType, bool) {
	switch t {
	case futures.OrderTypeStop, futures.OrderTypeStopMarket:
		return exchange.ConditionalStop, true
	case futures.OrderTypeTakeProfit, futures.OrderTypeTakeProfitMarket:
		return exchange.ConditionalTakeProfit, true
	}
	return "", false
}

func workingType(w exchange.WorkingType) futures.WorkingType {
	if w == exchange.WorkingContractPrice {
		return futures.WorkingTypeContractPrice
	}
	return futures.WorkingTypeMarkPrice
}

func wrapAPIError(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &exchange.GatewayError{Op: op, Code: apiErr.Code, Message: apiErr.Message}
	}
	return &exchange.GatewayError{Op: op, Message: err.Error()}
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
