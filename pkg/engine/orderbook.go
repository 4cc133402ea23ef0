// Package engine implements the price-time-priority matching engine shared
// by the spot and futures controllers. The engine is pure: it never touches
// balances, it only reports an ordered event stream that the calling
// controller settles.
package engine

import (
	"bytes"
	"container/heap"
	"encoding/gob"
	"sort"

	"github.com/gdex-labs/gdex/pkg/types"
)

// Order is one resting order. Quantity is the unfilled remainder.
type Order struct {
	ID       uint64
	Side     OrderSide
	Price    uint64
	Quantity uint64
	Ordinal  uint64
}

// Orderbook holds both sides of one (base, quote) pair.
//
// Heap-based best price tracking gives O(1) peek; each price level is a
// FIFO slice so time priority inside a level is positional.
type Orderbook struct {
	baseAssetID  types.AssetID
	quoteAssetID types.AssetID

	sequence uint64 // order id source, monotonic per book

	bidHeap *MaxPriceHeap
	askHeap *MinPriceHeap

	bids map[uint64][]*Order // price -> FIFO slice
	asks map[uint64][]*Order

	orderIndex map[uint64]*Order // id -> resting order
}

// NewOrderbook creates an empty book for the pair.
func NewOrderbook(base, quote types.AssetID) *Orderbook {
	bidHeap := &MaxPriceHeap{}
	askHeap := &MinPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Orderbook{
		baseAssetID:  base,
		quoteAssetID: quote,
		bidHeap:      bidHeap,
		askHeap:      askHeap,
		bids:         make(map[uint64][]*Order),
		asks:         make(map[uint64][]*Order),
		orderIndex:   make(map[uint64]*Order),
	}
}

func (ob *Orderbook) BaseAssetID() types.AssetID  { return ob.baseAssetID }
func (ob *Orderbook) QuoteAssetID() types.AssetID { return ob.quoteAssetID }

// ProcessOrder applies one request and returns the ordered event stream.
// The first event is always Accepted (market/limit), Updated, Cancelled, or
// a validation failure.
func (ob *Orderbook) ProcessOrder(req OrderRequest) OrderProcessingResult {
	if fail := ob.validate(req); fail != nil {
		return OrderProcessingResult{failure(*fail)}
	}

	switch req.Type {
	case MarketOrder:
		return ob.processMarket(req)
	case LimitOrder:
		return ob.processLimit(req)
	case UpdateOrder:
		return ob.processUpdate(req)
	case CancelOrder:
		return ob.processCancel(req)
	}
	return OrderProcessingResult{failure(Failure{Kind: Validation, Reason: "unknown order type"})}
}

func (ob *Orderbook) validate(req OrderRequest) *Failure {
	if req.BaseAssetID != ob.baseAssetID || req.QuoteAssetID != ob.quoteAssetID {
		return &Failure{Kind: Validation, Reason: "unknown pair"}
	}
	if req.Side != Bid && req.Side != Ask {
		return &Failure{Kind: Validation, Reason: "bad order side"}
	}
	switch req.Type {
	case MarketOrder:
		if req.Quantity == 0 {
			return &Failure{Kind: Validation, Reason: "quantity must be positive"}
		}
	case LimitOrder, UpdateOrder:
		if req.Quantity == 0 {
			return &Failure{Kind: Validation, Reason: "quantity must be positive"}
		}
		if req.Price == 0 {
			return &Failure{Kind: Validation, Reason: "price must be positive"}
		}
	}
	return nil
}

func (ob *Orderbook) nextID() uint64 {
	ob.sequence++
	return ob.sequence
}

func (ob *Orderbook) processMarket(req OrderRequest) OrderProcessingResult {
	id := ob.nextID()
	events := OrderProcessingResult{success(Success{
		Kind: Accepted, OrderID: id, Side: req.Side, OrderType: MarketOrder,
		Quantity: req.Quantity, Ordinal: id,
	})}

	remaining := ob.match(id, req.Side, 0, false, req.Quantity, &events)
	if remaining > 0 {
		events = append(events, failure(Failure{Kind: NoMatch, OrderID: id, Reason: "no matching order"}))
	}
	return events
}

func (ob *Orderbook) processLimit(req OrderRequest) OrderProcessingResult {
	id := ob.nextID()
	events := OrderProcessingResult{success(Success{
		Kind: Accepted, OrderID: id, Side: req.Side, OrderType: LimitOrder,
		Price: req.Price, Quantity: req.Quantity, Ordinal: id,
	})}

	remaining := ob.match(id, req.Side, req.Price, true, req.Quantity, &events)
	if remaining > 0 {
		ob.add(&Order{ID: id, Side: req.Side, Price: req.Price, Quantity: remaining, Ordinal: id})
	}
	return events
}

func (ob *Orderbook) processUpdate(req OrderRequest) OrderProcessingResult {
	resting, ok := ob.orderIndex[req.OrderID]
	if !ok || resting.Side != req.Side {
		return OrderProcessingResult{failure(Failure{Kind: OrderNotFound, OrderID: req.OrderID, Reason: "order not found"})}
	}
	ob.remove(resting)

	// re-queue at the back of the new level; price-time priority restarts
	ob.sequence++
	ob.add(&Order{ID: req.OrderID, Side: req.Side, Price: req.Price, Quantity: req.Quantity, Ordinal: ob.sequence})

	return OrderProcessingResult{success(Success{
		Kind: Updated, OrderID: req.OrderID, Side: req.Side, OrderType: UpdateOrder,
		Price: req.Price, Quantity: req.Quantity, Ordinal: ob.sequence,
	})}
}

func (ob *Orderbook) processCancel(req OrderRequest) OrderProcessingResult {
	resting, ok := ob.orderIndex[req.OrderID]
	if !ok {
		return OrderProcessingResult{failure(Failure{Kind: OrderNotFound, OrderID: req.OrderID, Reason: "order not found"})}
	}
	ob.remove(resting)

	return OrderProcessingResult{success(Success{
		Kind: Cancelled, OrderID: resting.ID, Side: resting.Side, OrderType: CancelOrder,
		Price: resting.Price, Quantity: resting.Quantity, Ordinal: resting.Ordinal,
	})}
}

// match consumes liquidity from the opposite side. bounded limits matching
// to crossing prices. Returns the unmatched remainder. Per maker touched,
// the incoming order's event precedes the maker's.
func (ob *Orderbook) match(id uint64, side OrderSide, price uint64, bounded bool, quantity uint64, events *OrderProcessingResult) uint64 {
	remaining := quantity
	for remaining > 0 {
		var level uint64
		if side == Bid {
			if ob.askHeap.Len() == 0 {
				break
			}
			level = ob.askHeap.Peek()
			if bounded && level > price {
				break
			}
		} else {
			if ob.bidHeap.Len() == 0 {
				break
			}
			level = ob.bidHeap.Peek()
			if bounded && level < price {
				break
			}
		}

		queue := ob.levelQueue(side.Opposite(), level)
		maker := queue[0]
		matched := min(remaining, maker.Quantity)
		remaining -= matched
		maker.Quantity -= matched

		incomingKind := PartiallyFilled
		if remaining == 0 {
			incomingKind = Filled
		}
		*events = append(*events, success(Success{
			Kind: incomingKind, OrderID: id, Side: side, Price: level, Quantity: matched,
		}))

		makerKind := PartiallyFilled
		if maker.Quantity == 0 {
			makerKind = Filled
		}
		*events = append(*events, success(Success{
			Kind: makerKind, OrderID: maker.ID, Side: maker.Side, Price: level, Quantity: matched, Ordinal: maker.Ordinal,
		}))

		if maker.Quantity == 0 {
			ob.remove(maker)
		}
	}
	return remaining
}

func (ob *Orderbook) levelQueue(side OrderSide, price uint64) []*Order {
	if side == Bid {
		return ob.bids[price]
	}
	return ob.asks[price]
}

func (ob *Orderbook) add(o *Order) {
	if o.Side == Bid {
		if len(ob.bids[o.Price]) == 0 {
			heap.Push(ob.bidHeap, o.Price)
		}
		ob.bids[o.Price] = append(ob.bids[o.Price], o)
	} else {
		if len(ob.asks[o.Price]) == 0 {
			heap.Push(ob.askHeap, o.Price)
		}
		ob.asks[o.Price] = append(ob.asks[o.Price], o)
	}
	ob.orderIndex[o.ID] = o
}

func (ob *Orderbook) remove(o *Order) {
	if o.Side == Bid {
		arr := ob.bids[o.Price]
		for i, r := range arr {
			if r.ID == o.ID {
				ob.bids[o.Price] = append(arr[:i], arr[i+1:]...)
				break
			}
		}
		if len(ob.bids[o.Price]) == 0 {
			delete(ob.bids, o.Price)
			ob.removeFromBidHeap(o.Price)
		}
	} else {
		arr := ob.asks[o.Price]
		for i, r := range arr {
			if r.ID == o.ID {
				ob.asks[o.Price] = append(arr[:i], arr[i+1:]...)
				break
			}
		}
		if len(ob.asks[o.Price]) == 0 {
			delete(ob.asks, o.Price)
			ob.removeFromAskHeap(o.Price)
		}
	}
	delete(ob.orderIndex, o.ID)
}

// removeFromBidHeap removes a price level from the bid heap (O(N) worst
// case, but rare)
func (ob *Orderbook) removeFromBidHeap(price uint64) {
	for i := 0; i < ob.bidHeap.Len(); i++ {
		if (*ob.bidHeap)[i] == price {
			heap.Remove(ob.bidHeap, i)
			return
		}
	}
}

func (ob *Orderbook) removeFromAskHeap(price uint64) {
	for i := 0; i < ob.askHeap.Len(); i++ {
		if (*ob.askHeap)[i] == price {
			heap.Remove(ob.askHeap, i)
			return
		}
	}
}

// Lookup returns the resting order with the given id.
func (ob *Orderbook) Lookup(id uint64) (Order, bool) {
	o, ok := ob.orderIndex[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// MarketQuote walks the opposite side and reports how much of quantity a
// market order could fill right now and the quote cost of those fills. The
// walk mirrors the matching loop, so a market order placed immediately
// after settles for exactly the quoted amounts.
func (ob *Orderbook) MarketQuote(side OrderSide, quantity uint64) (fillable, cost uint64) {
	levels := ob.asks
	descending := false
	if side == Ask {
		levels = ob.bids
		descending = true
	}
	prices := make([]uint64, 0, len(levels))
	for p := range levels {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool {
		if descending {
			return prices[i] > prices[j]
		}
		return prices[i] < prices[j]
	})
	remaining := quantity
	for _, p := range prices {
		if remaining == 0 {
			break
		}
		for _, o := range levels[p] {
			matched := min(remaining, o.Quantity)
			fillable += matched
			cost += matched * p
			remaining -= matched
			if remaining == 0 {
				break
			}
		}
	}
	return fillable, cost
}

// Spread returns the best bid and ask, present only when both sides have
// liquidity.
func (ob *Orderbook) Spread() (bestBid, bestAsk uint64, ok bool) {
	if ob.bidHeap.Len() == 0 || ob.askHeap.Len() == 0 {
		return 0, 0, false
	}
	return ob.bidHeap.Peek(), ob.askHeap.Peek(), true
}

// Len reports the number of resting orders.
func (ob *Orderbook) Len() int { return len(ob.orderIndex) }

// Depth aggregates the top maxLevels price levels per side: bids high to
// low, asks low to high.
func (ob *Orderbook) Depth(maxLevels int) types.OrderbookDepth {
	collect := func(levels map[uint64][]*Order, descending bool) []types.DepthLevel {
		prices := make([]uint64, 0, len(levels))
		for p := range levels {
			prices = append(prices, p)
		}
		sort.Slice(prices, func(i, j int) bool {
			if descending {
				return prices[i] > prices[j]
			}
			return prices[i] < prices[j]
		})
		if len(prices) > maxLevels {
			prices = prices[:maxLevels]
		}
		out := make([]types.DepthLevel, 0, len(prices))
		for _, p := range prices {
			var qty uint64
			for _, o := range levels[p] {
				qty += o.Quantity
			}
			out = append(out, types.DepthLevel{Price: p, Quantity: qty})
		}
		return out
	}
	return types.OrderbookDepth{
		Bids: collect(ob.bids, true),
		Asks: collect(ob.asks, false),
	}
}

// bookSnapshot is the flat serialized form of an Orderbook. Orders are
// sorted so two identical books encode to identical bytes.
type bookSnapshot struct {
	BaseAssetID  types.AssetID
	QuoteAssetID types.AssetID
	Sequence     uint64
	Orders       []Order
}

// GobEncode flattens the book for catchup snapshots.
func (ob *Orderbook) GobEncode() ([]byte, error) {
	snap := bookSnapshot{
		BaseAssetID:  ob.baseAssetID,
		QuoteAssetID: ob.quoteAssetID,
		Sequence:     ob.sequence,
		Orders:       make([]Order, 0, len(ob.orderIndex)),
	}
	for _, o := range ob.orderIndex {
		snap.Orders = append(snap.Orders, *o)
	}
	sort.Slice(snap.Orders, func(i, j int) bool { return snap.Orders[i].Ordinal < snap.Orders[j].Ordinal })

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode rebuilds heaps and level queues from a snapshot.
func (ob *Orderbook) GobDecode(b []byte) error {
	var snap bookSnapshot
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&snap); err != nil {
		return err
	}
	fresh := NewOrderbook(snap.BaseAssetID, snap.QuoteAssetID)
	fresh.sequence = snap.Sequence
	for i := range snap.Orders {
		o := snap.Orders[i]
		fresh.add(&o)
	}
	*ob = *fresh
	return nil
}
