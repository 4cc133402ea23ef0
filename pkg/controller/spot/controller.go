// Package spot implements the spot exchange: one orderbook per asset pair,
// funds escrowed in the controller's bank account while orders rest.
package spot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"sync"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/controller/event"
	"github.com/gdex-labs/gdex/pkg/engine"
	"github.com/gdex-labs/gdex/pkg/types"
)

var ControllerAccount = types.AccountPubKey([32]byte{'S', 'P', 'O', 'T', 'C', 'O', 'N', 'T', 'R', 'O', 'L', 'L', 'E', 'R', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'})

// DepthLevels is how many aggregated levels per side the end-of-block hook
// snapshots.
const DepthLevels = 100

// AssetPairKey renders the canonical "{base}_{quote}" orderbook key.
func AssetPairKey(base, quote types.AssetID) string {
	return fmt.Sprintf("%d_%d", base, quote)
}

// DepthWriter is the slice of the post-process store the end-of-block hook
// needs.
type DepthWriter interface {
	WriteOrderbookDepth(pair string, depth types.OrderbookDepth) error
}

// orderMeta mirrors one resting order for escrow accounting. Quantity is
// the unfilled remainder.
type orderMeta struct {
	Side     engine.OrderSide
	Price    uint64
	Quantity uint64
}

// SpotAccount tracks one user's open orders and escrowed funds on one book.
type SpotAccount struct {
	OpenOrders  map[uint64]orderMeta
	BaseEscrow  uint64
	QuoteEscrow uint64
}

func newSpotAccount() *SpotAccount {
	return &SpotAccount{OpenOrders: make(map[uint64]orderMeta)}
}

type orderbookState struct {
	book           *engine.Orderbook
	accounts       map[types.AccountPubKey]*SpotAccount
	orderToAccount map[uint64]types.AccountPubKey
}

func newOrderbookState(base, quote types.AssetID) *orderbookState {
	return &orderbookState{
		book:           engine.NewOrderbook(base, quote),
		accounts:       make(map[types.AccountPubKey]*SpotAccount),
		orderToAccount: make(map[uint64]types.AccountPubKey),
	}
}

func (s *orderbookState) account(pk types.AccountPubKey) *SpotAccount {
	acct, ok := s.accounts[pk]
	if !ok {
		acct = newSpotAccount()
		s.accounts[pk] = acct
	}
	return acct
}

// Controller owns every spot orderbook and reconciles balances through the
// bank controller.
type Controller struct {
	mu     sync.Mutex
	events *event.Manager
	bank   *bank.Controller

	orderbooks map[string]*orderbookState
}

func NewController(bankController *bank.Controller) *Controller {
	return &Controller{
		events:     event.NewManager(),
		bank:       bankController,
		orderbooks: make(map[string]*orderbookState),
	}
}

func (c *Controller) Initialize(em *event.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = em
}

func (c *Controller) InitializeControllerAccount() error {
	return c.bank.CreateAccount(ControllerAccount)
}

func (c *Controller) HandleConsensusTransaction(tx *types.Transaction) error {
	switch tx.RequestType {
	case types.RequestCreateOrderbook:
		var req types.CreateOrderbookRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.CreateOrderbook(req.BaseAssetID, req.QuoteAssetID)
	case types.RequestMarketOrder:
		var req types.MarketOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.PlaceMarketOrder(tx.Sender, req.BaseAssetID, req.QuoteAssetID, side, req.Quantity)
	case types.RequestLimitOrder:
		var req types.LimitOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.PlaceLimitOrder(tx.Sender, req.BaseAssetID, req.QuoteAssetID, side, req.Price, req.Quantity)
	case types.RequestUpdateOrder:
		var req types.UpdateOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.UpdateOrder(tx.Sender, req.BaseAssetID, req.QuoteAssetID, side, req.Price, req.Quantity, req.OrderID)
	case types.RequestCancelOrder:
		var req types.CancelOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.CancelOrder(tx.Sender, req.BaseAssetID, req.QuoteAssetID, side, req.OrderID)
	}
	return types.ErrInvalidRequestType
}

// CreateOrderbook registers a fresh pair. Both assets must already exist
// and the pair must be new.
func (c *Controller) CreateOrderbook(base, quote types.AssetID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bank.AssetExists(base) || !c.bank.AssetExists(quote) {
		return types.ErrAssetLookup
	}
	key := AssetPairKey(base, quote)
	if _, ok := c.orderbooks[key]; ok {
		return types.ErrOrderBookCreation
	}
	c.orderbooks[key] = newOrderbookState(base, quote)
	return nil
}

func (c *Controller) state(base, quote types.AssetID) (*orderbookState, error) {
	st, ok := c.orderbooks[AssetPairKey(base, quote)]
	if !ok {
		return nil, types.ErrOrderbookExistence
	}
	return st, nil
}

// PlaceLimitOrder escrows funds at the limit price, runs the engine, and
// settles the resulting fills.
func (c *Controller) PlaceLimitOrder(sender types.AccountPubKey, base, quote types.AssetID, side engine.OrderSide, price, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.state(base, quote)
	if err != nil {
		return err
	}
	if price == 0 || quantity == 0 {
		return types.ErrOrderRequest
	}

	// escrow up front: base for asks, quote at the limit price for bids
	escrowAsset, escrowAmount := base, quantity
	if side == engine.Bid {
		escrowAsset, escrowAmount = quote, quantity*price
	}
	if err := c.bank.Transfer(sender, ControllerAccount, escrowAsset, escrowAmount); err != nil {
		return types.ErrOrderExceedsBalance
	}

	result := st.book.ProcessOrder(engine.NewLimitOrderRequest(base, quote, side, price, quantity))
	if fail := result[0].Failure; fail != nil {
		// engine rejected after escrow: release in full
		if rerr := c.bank.Transfer(ControllerAccount, sender, escrowAsset, escrowAmount); rerr != nil {
			return rerr
		}
		return types.ErrOrderRequest
	}

	acct := st.account(sender)
	if side == engine.Bid {
		acct.QuoteEscrow += escrowAmount
	} else {
		acct.BaseEscrow += escrowAmount
	}

	return c.settle(st, sender, result, types.EventOrderNew)
}

// PlaceMarketOrder quotes the current book to escrow the exact cost, then
// matches. The unfillable remainder is discarded by the engine.
func (c *Controller) PlaceMarketOrder(sender types.AccountPubKey, base, quote types.AssetID, side engine.OrderSide, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.state(base, quote)
	if err != nil {
		return err
	}
	if quantity == 0 {
		return types.ErrOrderRequest
	}

	fillable, cost := st.book.MarketQuote(side, quantity)
	escrowAsset, escrowAmount := base, fillable
	if side == engine.Bid {
		escrowAsset, escrowAmount = quote, cost
	}
	if escrowAmount > 0 {
		if err := c.bank.Transfer(sender, ControllerAccount, escrowAsset, escrowAmount); err != nil {
			return types.ErrOrderExceedsBalance
		}
	}

	result := st.book.ProcessOrder(engine.NewMarketOrderRequest(base, quote, side, quantity))
	if fail := result[0].Failure; fail != nil {
		if escrowAmount > 0 {
			if rerr := c.bank.Transfer(ControllerAccount, sender, escrowAsset, escrowAmount); rerr != nil {
				return rerr
			}
		}
		return types.ErrOrderRequest
	}

	acct := st.account(sender)
	if side == engine.Bid {
		acct.QuoteEscrow += escrowAmount
	} else {
		acct.BaseEscrow += escrowAmount
	}

	return c.settle(st, sender, result, types.EventOrderNew)
}

// settle walks an engine result stream, moving funds for every fill and
// registering the accepted remainder. The incoming order's escrow was taken
// before matching.
func (c *Controller) settle(st *orderbookState, sender types.AccountPubKey, result engine.OrderProcessingResult, newEvent types.EventType) error {
	accepted := result[0].Success
	incomingID := accepted.OrderID
	st.orderToAccount[incomingID] = sender
	incoming := orderMeta{Side: accepted.Side, Price: accepted.Price, Quantity: accepted.Quantity}
	acct := st.account(sender)

	c.events.Push(types.NewExecutionEvent(newEvent, &types.OrderEventBody{
		Account: sender, OrderID: incomingID, Side: uint64(accepted.Side), Price: accepted.Price, Quantity: accepted.Quantity,
	}))

	for _, out := range result[1:] {
		if out.Failure != nil {
			// market remainder with no match: refund the unused escrow below
			continue
		}
		ev := out.Success
		if ev.OrderID == incomingID {
			// taker-side fill: settle against the matching maker event next
			incoming.Quantity -= ev.Quantity
			c.pushFillEvent(sender, ev)
			continue
		}

		// maker fill at the maker's own level price
		maker := st.orderToAccount[ev.OrderID]
		makerAcct := st.account(maker)
		q, p := ev.Quantity, ev.Price

		if incoming.Side == engine.Bid {
			// sender buys base from maker's base escrow, pays quote
			makerAcct.BaseEscrow -= q
			if err := c.bank.Transfer(ControllerAccount, sender, st.book.BaseAssetID(), q); err != nil {
				return err
			}
			acct.QuoteEscrow -= q * p
			if err := c.bank.Transfer(ControllerAccount, maker, st.book.QuoteAssetID(), q*p); err != nil {
				return err
			}
			// bid escrowed at the limit price; refund the improvement
			if incoming.Price > p {
				refund := q * (incoming.Price - p)
				acct.QuoteEscrow -= refund
				if err := c.bank.Transfer(ControllerAccount, sender, st.book.QuoteAssetID(), refund); err != nil {
					return err
				}
			}
		} else {
			// sender sells base out of escrow, maker pays from quote escrow
			acct.BaseEscrow -= q
			if err := c.bank.Transfer(ControllerAccount, maker, st.book.BaseAssetID(), q); err != nil {
				return err
			}
			makerAcct.QuoteEscrow -= q * p
			if err := c.bank.Transfer(ControllerAccount, sender, st.book.QuoteAssetID(), q*p); err != nil {
				return err
			}
		}

		c.updateRestingMeta(st, maker, ev)
		c.pushFillEvent(maker, ev)
	}

	// register or clear the incoming order's remainder
	if incoming.Quantity > 0 {
		if _, stillResting := st.book.Lookup(incomingID); stillResting {
			acct.OpenOrders[incomingID] = incoming
		} else {
			// market order remainder was discarded: release unused escrow
			delete(st.orderToAccount, incomingID)
			if incoming.Side == engine.Bid {
				refund := acct.QuoteEscrow - c.lockedQuote(acct)
				if refund > 0 {
					acct.QuoteEscrow -= refund
					if err := c.bank.Transfer(ControllerAccount, sender, st.book.QuoteAssetID(), refund); err != nil {
						return err
					}
				}
			} else {
				refund := acct.BaseEscrow - c.lockedBase(acct)
				if refund > 0 {
					acct.BaseEscrow -= refund
					if err := c.bank.Transfer(ControllerAccount, sender, st.book.BaseAssetID(), refund); err != nil {
						return err
					}
				}
			}
		}
	} else {
		delete(st.orderToAccount, incomingID)
	}
	return nil
}

// lockedBase sums the base escrow still owed to resting asks.
func (c *Controller) lockedBase(acct *SpotAccount) uint64 {
	var total uint64
	for _, m := range acct.OpenOrders {
		if m.Side == engine.Ask {
			total += m.Quantity
		}
	}
	return total
}

// lockedQuote sums the quote escrow still owed to resting bids.
func (c *Controller) lockedQuote(acct *SpotAccount) uint64 {
	var total uint64
	for _, m := range acct.OpenOrders {
		if m.Side == engine.Bid {
			total += m.Quantity * m.Price
		}
	}
	return total
}

func (c *Controller) updateRestingMeta(st *orderbookState, owner types.AccountPubKey, ev *engine.Success) {
	acct := st.account(owner)
	meta, ok := acct.OpenOrders[ev.OrderID]
	if !ok {
		return
	}
	if ev.Quantity >= meta.Quantity {
		delete(acct.OpenOrders, ev.OrderID)
		delete(st.orderToAccount, ev.OrderID)
		return
	}
	meta.Quantity -= ev.Quantity
	acct.OpenOrders[ev.OrderID] = meta
}

func (c *Controller) pushFillEvent(owner types.AccountPubKey, ev *engine.Success) {
	t := types.EventOrderPartialFill
	if ev.Kind == engine.Filled {
		t = types.EventOrderFill
	}
	c.events.Push(types.NewExecutionEvent(t, &types.OrderEventBody{
		Account: owner, OrderID: ev.OrderID, Side: uint64(ev.Side), Price: ev.Price, Quantity: ev.Quantity,
	}))
}

// UpdateOrder re-prices a resting order, adjusting escrow by the
// difference. Only the owner may update.
func (c *Controller) UpdateOrder(sender types.AccountPubKey, base, quote types.AssetID, side engine.OrderSide, price, quantity, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.state(base, quote)
	if err != nil {
		return err
	}
	if st.orderToAccount[orderID] != sender {
		return types.ErrOrderRequest
	}
	acct := st.account(sender)
	meta, ok := acct.OpenOrders[orderID]
	if !ok || meta.Side != side {
		return types.ErrOrderRequest
	}
	if price == 0 || quantity == 0 {
		return types.ErrOrderRequest
	}

	// take any additional escrow before touching the book
	var oldLocked, newLocked uint64
	escrowAsset := base
	if side == engine.Bid {
		escrowAsset = quote
		oldLocked, newLocked = meta.Quantity*meta.Price, quantity*price
	} else {
		oldLocked, newLocked = meta.Quantity, quantity
	}
	if newLocked > oldLocked {
		if err := c.bank.Transfer(sender, ControllerAccount, escrowAsset, newLocked-oldLocked); err != nil {
			return types.ErrOrderExceedsBalance
		}
	}

	result := st.book.ProcessOrder(engine.NewUpdateOrderRequest(base, quote, side, price, quantity, orderID))
	if fail := result[0].Failure; fail != nil {
		if newLocked > oldLocked {
			if rerr := c.bank.Transfer(ControllerAccount, sender, escrowAsset, newLocked-oldLocked); rerr != nil {
				return rerr
			}
		}
		return types.ErrOrderRequest
	}

	if newLocked < oldLocked {
		if err := c.bank.Transfer(ControllerAccount, sender, escrowAsset, oldLocked-newLocked); err != nil {
			return err
		}
	}
	if side == engine.Bid {
		acct.QuoteEscrow = acct.QuoteEscrow - oldLocked + newLocked
	} else {
		acct.BaseEscrow = acct.BaseEscrow - oldLocked + newLocked
	}
	acct.OpenOrders[orderID] = orderMeta{Side: side, Price: price, Quantity: quantity}

	c.events.Push(types.NewExecutionEvent(types.EventOrderUpdate, &types.OrderEventBody{
		Account: sender, OrderID: orderID, Side: uint64(side), Price: price, Quantity: quantity,
	}))
	return nil
}

// CancelOrder removes a resting order and releases its escrow. Only the
// owner may cancel.
func (c *Controller) CancelOrder(sender types.AccountPubKey, base, quote types.AssetID, side engine.OrderSide, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.state(base, quote)
	if err != nil {
		return err
	}
	if st.orderToAccount[orderID] != sender {
		return types.ErrOrderRequest
	}
	acct := st.account(sender)
	meta, ok := acct.OpenOrders[orderID]
	if !ok {
		return types.ErrOrderRequest
	}

	result := st.book.ProcessOrder(engine.NewCancelOrderRequest(base, quote, side, orderID))
	if fail := result[0].Failure; fail != nil {
		return types.ErrOrderRequest
	}

	if meta.Side == engine.Bid {
		refund := meta.Quantity * meta.Price
		acct.QuoteEscrow -= refund
		if err := c.bank.Transfer(ControllerAccount, sender, st.book.QuoteAssetID(), refund); err != nil {
			return err
		}
	} else {
		acct.BaseEscrow -= meta.Quantity
		if err := c.bank.Transfer(ControllerAccount, sender, st.book.BaseAssetID(), meta.Quantity); err != nil {
			return err
		}
	}
	delete(acct.OpenOrders, orderID)
	delete(st.orderToAccount, orderID)

	c.events.Push(types.NewExecutionEvent(types.EventOrderCancel, &types.OrderEventBody{
		Account: sender, OrderID: orderID, Side: uint64(side), Price: meta.Price, Quantity: meta.Quantity,
	}))
	return nil
}

// Depth aggregates the top levels of one book.
func (c *Controller) Depth(base, quote types.AssetID, levels int) (types.OrderbookDepth, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.state(base, quote)
	if err != nil {
		return types.OrderbookDepth{}, err
	}
	return st.book.Depth(levels), nil
}

// Account returns a copy of one user's spot account on one book.
func (c *Controller) Account(base, quote types.AssetID, pk types.AccountPubKey) (SpotAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.state(base, quote)
	if err != nil {
		return SpotAccount{}, err
	}
	acct, ok := st.accounts[pk]
	if !ok {
		return SpotAccount{}, types.ErrAccountLookup
	}
	out := SpotAccount{BaseEscrow: acct.BaseEscrow, QuoteEscrow: acct.QuoteEscrow, OpenOrders: make(map[uint64]orderMeta, len(acct.OpenOrders))}
	for id, m := range acct.OpenOrders {
		out.OpenOrders[id] = m
	}
	return out, nil
}

// ProcessEndOfBlock snapshots the top depth levels of every book.
func (c *Controller) ProcessEndOfBlock(w DepthWriter, blockNumber types.BlockNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, st := range c.orderbooks {
		_ = w.WriteOrderbookDepth(key, st.book.Depth(DepthLevels))
	}
}

// snapshot types keep the serialized form deterministic: pairs, accounts
// and order ids are all sorted.
type snapshot struct {
	Books []bookSnapshot
}

type bookSnapshot struct {
	Key            string
	Book           *engine.Orderbook
	Accounts       []accountSnapshot
	OrderToAccount []orderOwner
}

type accountSnapshot struct {
	PubKey      types.AccountPubKey
	OrderIDs    []uint64
	Orders      []orderMeta
	BaseEscrow  uint64
	QuoteEscrow uint64
}

type orderOwner struct {
	OrderID uint64
	Owner   types.AccountPubKey
}

func (c *Controller) CatchupState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap snapshot
	keys := make([]string, 0, len(c.orderbooks))
	for k := range c.orderbooks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		st := c.orderbooks[k]
		bs := bookSnapshot{Key: k, Book: st.book}

		pks := make([]types.AccountPubKey, 0, len(st.accounts))
		for pk := range st.accounts {
			pks = append(pks, pk)
		}
		sort.Slice(pks, func(i, j int) bool { return bytes.Compare(pks[i][:], pks[j][:]) < 0 })
		for _, pk := range pks {
			acct := st.accounts[pk]
			as := accountSnapshot{PubKey: pk, BaseEscrow: acct.BaseEscrow, QuoteEscrow: acct.QuoteEscrow}
			ids := make([]uint64, 0, len(acct.OpenOrders))
			for id := range acct.OpenOrders {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, id := range ids {
				as.OrderIDs = append(as.OrderIDs, id)
				as.Orders = append(as.Orders, acct.OpenOrders[id])
			}
			bs.Accounts = append(bs.Accounts, as)
		}

		oids := make([]uint64, 0, len(st.orderToAccount))
		for id := range st.orderToAccount {
			oids = append(oids, id)
		}
		sort.Slice(oids, func(i, j int) bool { return oids[i] < oids[j] })
		for _, id := range oids {
			bs.OrderToAccount = append(bs.OrderToAccount, orderOwner{OrderID: id, Owner: st.orderToAccount[id]})
		}

		snap.Books = append(snap.Books, bs)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, types.ErrSerialization
	}
	return buf.Bytes(), nil
}

func (c *Controller) LoadCatchupState(b []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&snap); err != nil {
		return types.ErrDeserialization
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderbooks = make(map[string]*orderbookState, len(snap.Books))
	for _, bs := range snap.Books {
		st := &orderbookState{
			book:           bs.Book,
			accounts:       make(map[types.AccountPubKey]*SpotAccount, len(bs.Accounts)),
			orderToAccount: make(map[uint64]types.AccountPubKey, len(bs.OrderToAccount)),
		}
		for _, as := range bs.Accounts {
			acct := newSpotAccount()
			acct.BaseEscrow = as.BaseEscrow
			acct.QuoteEscrow = as.QuoteEscrow
			for i, id := range as.OrderIDs {
				acct.OpenOrders[id] = as.Orders[i]
			}
			st.accounts[as.PubKey] = acct
		}
		for _, oo := range bs.OrderToAccount {
			st.orderToAccount[oo.OrderID] = oo.Owner
		}
		c.orderbooks[bs.Key] = st
	}
	return nil
}
