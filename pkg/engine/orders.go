package engine

import (
	"github.com/gdex-labs/gdex/pkg/types"
)

// OrderSide matches the wire encoding: 1 = Bid, 2 = Ask.
type OrderSide uint64

const (
	Bid OrderSide = 1
	Ask OrderSide = 2
)

func (s OrderSide) Opposite() OrderSide {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s OrderSide) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// SideFromUint64 validates a wire-side value.
func SideFromUint64(v uint64) (OrderSide, error) {
	switch OrderSide(v) {
	case Bid, Ask:
		return OrderSide(v), nil
	}
	return 0, types.ErrOrderRequest
}

// OrderType distinguishes the four request variants the engine accepts.
type OrderType int

const (
	MarketOrder OrderType = iota
	LimitOrder
	UpdateOrder
	CancelOrder
)

// OrderRequest is one instruction for the matching engine.
type OrderRequest struct {
	Type         OrderType
	BaseAssetID  types.AssetID
	QuoteAssetID types.AssetID
	Side         OrderSide
	Price        uint64 // unused for market orders
	Quantity     uint64 // unused for cancels
	OrderID      uint64 // update/cancel only
}

// NewMarketOrderRequest matches greedily against the opposite side.
func NewMarketOrderRequest(base, quote types.AssetID, side OrderSide, quantity uint64) OrderRequest {
	return OrderRequest{Type: MarketOrder, BaseAssetID: base, QuoteAssetID: quote, Side: side, Quantity: quantity}
}

// NewLimitOrderRequest matches while crossing, then rests the remainder.
func NewLimitOrderRequest(base, quote types.AssetID, side OrderSide, price, quantity uint64) OrderRequest {
	return OrderRequest{Type: LimitOrder, BaseAssetID: base, QuoteAssetID: quote, Side: side, Price: price, Quantity: quantity}
}

// NewUpdateOrderRequest atomically cancels and replaces a resting order at a
// new price and quantity on the same side. Do not change order side;
// cancel and create a new order instead.
func NewUpdateOrderRequest(base, quote types.AssetID, side OrderSide, price, quantity, orderID uint64) OrderRequest {
	return OrderRequest{Type: UpdateOrder, BaseAssetID: base, QuoteAssetID: quote, Side: side, Price: price, Quantity: quantity, OrderID: orderID}
}

// NewCancelOrderRequest removes a resting order by id.
func NewCancelOrderRequest(base, quote types.AssetID, side OrderSide, orderID uint64) OrderRequest {
	return OrderRequest{Type: CancelOrder, BaseAssetID: base, QuoteAssetID: quote, Side: side, OrderID: orderID}
}
