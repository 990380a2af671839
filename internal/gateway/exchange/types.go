// Package exchange defines a common abstraction for derivatives venues.
// This keeps the execution core independent of any one SDK: order placement,
// polling and position queries all go through the Gateway interface.
package exchange

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing direction for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// IsValid reports whether s is one of the two known directions.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// ConditionalType distinguishes the two legs of a bracket.
type ConditionalType string

const (
	ConditionalTakeProfit ConditionalType = "TAKE_PROFIT"
	ConditionalStop       ConditionalType = "STOP"
)

// OrderStatus is the venue-reported lifecycle state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// Filled reports whether the order completed in full.
func (s OrderStatus) Filled() bool { return s == StatusFilled }

// TerminalNonFill reports whether the order ended without a full fill.
// Unknown statuses are treated as in-flight, not terminal.
func (s OrderStatus) TerminalNonFill() bool {
	switch s {
	case StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// WorkingType selects the price feed conditional triggers evaluate against.
type WorkingType string

const (
	WorkingMarkPrice     WorkingType = "MARK_PRICE"
	WorkingContractPrice WorkingType = "CONTRACT_PRICE"
)

// LimitOrderRequest describes an entry order. Quantity and Price are
// pre-formatted decimal strings so the venue sees exactly what was planned.
type LimitOrderRequest struct {
	Symbol        string
	Side          Side
	Quantity      string
	Price         string
	ClientOrderID string
}

// ConditionalOrderRequest describes one exit leg of a bracket.
type ConditionalOrderRequest struct {
	Symbol        string
	Side          Side            // closing direction, opposite of the entry
	Type          ConditionalType // TAKE_PROFIT or STOP
	TriggerPrice  string
	ExecPrice     string // limit price once triggered
	Quantity      string
	ReduceOnly    bool
	WorkingType   WorkingType
	ClientOrderID string
}

// OrderUpdate is a snapshot of an order as reported by the venue.
type OrderUpdate struct {
	OrderID     int64
	Status      OrderStatus
	ExecutedQty string // cumulative filled quantity
	AvgPrice    string // average fill price, "0" until first fill
	OrigQty     string
}

// OpenOrder is a resting (non-conditional) order on the book.
type OpenOrder struct {
	OrderID       int64
	Symbol        string
	Side          Side
	Price         string
	OrigQty       string
	ExecutedQty   string
	Status        OrderStatus
	ClientOrderID string
}

// ConditionalOrder is an untriggered exit order waiting on its price condition.
type ConditionalOrder struct {
	AlgoID       int64
	Symbol       string
	Side         Side
	Type         ConditionalType
	TriggerPrice string
	Quantity     string
	ReduceOnly   bool
}
