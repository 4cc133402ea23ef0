// Package futures implements admin-scoped perpetual marketplaces with
// leveraged positions, margin enforcement, and liquidations.
package futures

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/controller/event"
	"github.com/gdex-labs/gdex/pkg/engine"
	"github.com/gdex-labs/gdex/pkg/types"
)

var ControllerAccount = types.AccountPubKey([32]byte{'F', 'U', 'T', 'U', 'R', 'E', 'S', 'C', 'O', 'N', 'T', 'R', 'O', 'L', 'L', 'E', 'R', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'})

const (
	// DefaultMaxLeverage applies to freshly created markets.
	DefaultMaxLeverage uint64 = 20
	// MaxLeverageLimit bounds UpdateMarketParams.
	MaxLeverageLimit uint64 = 100
	// DefaultLiquidationFeePercent is the penalty taken from a liquidated
	// account's deposit and paid to the liquidator.
	DefaultLiquidationFeePercent = 0.02
	// DepthLevels per side written by the end-of-block hook.
	DepthLevels = 100
)

// DepthWriter is the slice of the post-process store the end-of-block hook
// needs.
type DepthWriter interface {
	WriteOrderbookDepth(pair string, depth types.OrderbookDepth) error
}

// Controller owns every marketplace, keyed by admin public key.
type Controller struct {
	mu     sync.Mutex
	events *event.Manager
	bank   *bank.Controller

	marketplaces map[types.AccountPubKey]*Marketplace
}

func NewController(bankController *bank.Controller) *Controller {
	return &Controller{
		events:       event.NewManager(),
		bank:         bankController,
		marketplaces: make(map[types.AccountPubKey]*Marketplace),
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
	case types.RequestCreateMarketplace:
		var req types.CreateMarketplaceRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.CreateMarketplace(tx.Sender, req.QuoteAssetID)
	case types.RequestCreateMarket:
		var req types.CreateMarketRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.CreateMarket(tx.Sender, req.BaseAssetID)
	case types.RequestUpdateMarketParams:
		var req types.UpdateMarketParamsRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.UpdateMarketParams(tx.Sender, req.BaseAssetID, req.MaxLeverage)
	case types.RequestUpdateTime:
		var req types.UpdateTimeRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.UpdateTime(tx.Sender, req.LatestTime)
	case types.RequestUpdatePrices:
		var req types.UpdatePricesRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.UpdatePrices(tx.Sender, req.LatestPrices)
	case types.RequestAccountDeposit:
		var req types.AccountDepositRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.AccountDeposit(tx.Sender, req.MarketAdmin, req.Quantity)
	case types.RequestAccountWithdrawal:
		var req types.AccountWithdrawalRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.AccountWithdrawal(tx.Sender, req.MarketAdmin, req.Quantity)
	case types.RequestFuturesMarketOrder:
		var req types.FuturesMarketOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.PlaceMarketOrder(tx.Sender, req.MarketAdmin, req.BaseAssetID, req.QuoteAssetID, side, req.Quantity)
	case types.RequestFuturesLimitOrder:
		var req types.FuturesLimitOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.PlaceLimitOrder(tx.Sender, req.MarketAdmin, req.BaseAssetID, req.QuoteAssetID, side, req.Price, req.Quantity)
	case types.RequestFuturesUpdateOrder:
		var req types.FuturesUpdateOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.UpdateOrder(tx.Sender, req.MarketAdmin, req.BaseAssetID, side, req.Price, req.Quantity, req.OrderID)
	case types.RequestFuturesCancelOrder:
		var req types.FuturesCancelOrderRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.CancelOrder(tx.Sender, req.MarketAdmin, req.BaseAssetID, req.OrderID)
	case types.RequestFuturesCancelAll:
		var req types.CancelAllRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.CancelAll(tx.Sender, req.MarketAdmin, req.Target)
	case types.RequestFuturesLiquidate:
		var req types.LiquidateRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		side, err := engine.SideFromUint64(req.Side)
		if err != nil {
			return err
		}
		return c.Liquidate(tx.Sender, req.MarketAdmin, req.BaseAssetID, req.Target, side, req.Price, req.Quantity)
	}
	return types.ErrInvalidRequestType
}

// CreateMarketplace registers the sender as a marketplace admin. One
// marketplace per admin.
func (c *Controller) CreateMarketplace(admin types.AccountPubKey, quote types.AssetID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.marketplaces[admin]; ok {
		return types.ErrFuturesInitialization
	}
	if !c.bank.AssetExists(quote) {
		return types.ErrAssetLookup
	}
	c.marketplaces[admin] = &Marketplace{
		QuoteAssetID: quote,
		Markets:      make(map[types.AssetID]*FuturesMarket),
		Deposits:     make(map[types.AccountPubKey]int64),
	}
	return nil
}

// CreateMarket adds a market to the sender's marketplace, installing the
// deposit-ledger backref.
func (c *Controller) CreateMarket(admin types.AccountPubKey, base types.AssetID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	if !c.bank.AssetExists(base) {
		return types.ErrAssetLookup
	}
	if _, ok := mp.Markets[base]; ok {
		return types.ErrFuturesInitialization
	}
	mp.Markets[base] = &FuturesMarket{
		BaseAssetID:           base,
		QuoteAssetID:          mp.QuoteAssetID,
		MaxLeverage:           DefaultMaxLeverage,
		OrderToAccount:        make(map[uint64]types.AccountPubKey),
		Accounts:              make(map[types.AccountPubKey]*FuturesAccount),
		Orderbook:             engine.NewOrderbook(base, mp.QuoteAssetID),
		LiquidationFeePercent: DefaultLiquidationFeePercent,
		deposits:              mp.Deposits,
	}
	return nil
}

// UpdateMarketParams is admin-only and bounded.
func (c *Controller) UpdateMarketParams(admin types.AccountPubKey, base types.AssetID, maxLeverage uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.market(admin, base)
	if err != nil {
		return err
	}
	if maxLeverage == 0 || maxLeverage > MaxLeverageLimit {
		return types.ErrFuturesUpdate
	}
	m.MaxLeverage = maxLeverage
	return nil
}

// UpdateTime records the oracle clock, admin-only.
func (c *Controller) UpdateTime(admin types.AccountPubKey, latestTime uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	mp.LatestTime = latestTime
	return nil
}

// UpdatePrices sets oracle prices for every market at once, in ascending
// base asset order. Count mismatch applies nothing.
func (c *Controller) UpdatePrices(admin types.AccountPubKey, latestPrices []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	if len(latestPrices) != len(mp.Markets) {
		return types.ErrMarketPrices
	}
	bases := make([]types.AssetID, 0, len(mp.Markets))
	for id := range mp.Markets {
		bases = append(bases, id)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	for i, id := range bases {
		mp.Markets[id].OraclePrice = latestPrices[i]
	}
	return nil
}

// AccountDeposit moves quote collateral from the bank into the
// marketplace's deposit ledger.
func (c *Controller) AccountDeposit(sender, admin types.AccountPubKey, quantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	if quantity <= 0 {
		return types.ErrPaymentRequest
	}
	if err := c.bank.Transfer(sender, ControllerAccount, mp.QuoteAssetID, uint64(quantity)); err != nil {
		return err
	}
	mp.Deposits[sender] += quantity
	return nil
}

// AccountWithdrawal releases collateral back to the bank. The withdrawal
// fails if the resulting free collateral would be negative.
func (c *Controller) AccountWithdrawal(sender, admin types.AccountPubKey, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	free := c.freeCollateral(mp, sender)
	if free-int64(quantity) < 0 {
		return types.ErrFuturesWithdrawal
	}
	if err := c.bank.Transfer(ControllerAccount, sender, mp.QuoteAssetID, quantity); err != nil {
		return err
	}
	mp.Deposits[sender] -= int64(quantity)
	return nil
}

func (c *Controller) market(admin types.AccountPubKey, base types.AssetID) (*FuturesMarket, error) {
	mp, ok := c.marketplaces[admin]
	if !ok {
		return nil, types.ErrMarketplaceExistence
	}
	m, ok := mp.Markets[base]
	if !ok {
		return nil, types.ErrMarketExistence
	}
	return m, nil
}

// unrealizedPnL marks every position of pk in the marketplace against the
// oracle price.
func (c *Controller) unrealizedPnL(mp *Marketplace, pk types.AccountPubKey) int64 {
	var pnl int64
	for _, m := range mp.Markets {
		acct, ok := m.Accounts[pk]
		if !ok || acct.Position == nil || acct.Position.Quantity == 0 {
			continue
		}
		pnl += positionPnL(acct.Position, m.OraclePrice)
	}
	return pnl
}

func positionPnL(pos *FuturesPosition, markPrice uint64) int64 {
	diff := int64(markPrice) - int64(pos.AveragePrice)
	if pos.Side == engine.Ask {
		diff = -diff
	}
	return diff * int64(pos.Quantity)
}

// requiredInitialMargin sums position margin at oracle price plus open
// order exposure across every market in the marketplace.
func (c *Controller) requiredInitialMargin(mp *Marketplace, pk types.AccountPubKey) int64 {
	var required int64
	for _, m := range mp.Markets {
		acct, ok := m.Accounts[pk]
		if !ok {
			continue
		}
		if pos := acct.Position; pos != nil && pos.Quantity != 0 {
			required += int64(pos.Quantity * m.OraclePrice / m.MaxLeverage)
		}
		for _, o := range acct.OpenOrders {
			required += int64(o.Quantity * o.Price / m.MaxLeverage)
		}
	}
	return required
}

// freeCollateral is deposit + unrealized PnL - required initial margin.
func (c *Controller) freeCollateral(mp *Marketplace, pk types.AccountPubKey) int64 {
	return mp.Deposits[pk] + c.unrealizedPnL(mp, pk) - c.requiredInitialMargin(mp, pk)
}

// PlaceLimitOrder runs a margin pre-check counting the new order's
// exposure, then matches and settles fills.
func (c *Controller) PlaceLimitOrder(sender, admin types.AccountPubKey, base, quote types.AssetID, side engine.OrderSide, price, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	m, ok := mp.Markets[base]
	if !ok {
		return types.ErrMarketExistence
	}
	if quote != mp.QuoteAssetID {
		return types.ErrOrderRequest
	}
	if price == 0 || quantity == 0 {
		return types.ErrOrderRequest
	}

	exposure := int64(quantity * price / m.MaxLeverage)
	if c.freeCollateral(mp, sender)-exposure < 0 {
		return types.ErrInsufficientCollateral
	}

	result := m.Orderbook.ProcessOrder(engine.NewLimitOrderRequest(base, quote, side, price, quantity))
	if fail := result[0].Failure; fail != nil {
		return types.ErrOrderRequest
	}
	return c.settle(m, mp, sender, result)
}

// PlaceMarketOrder quotes the book for the margin pre-check, then matches.
func (c *Controller) PlaceMarketOrder(sender, admin types.AccountPubKey, base, quote types.AssetID, side engine.OrderSide, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	m, ok := mp.Markets[base]
	if !ok {
		return types.ErrMarketExistence
	}
	if quote != mp.QuoteAssetID {
		return types.ErrOrderRequest
	}
	if quantity == 0 {
		return types.ErrOrderRequest
	}

	_, cost := m.Orderbook.MarketQuote(side, quantity)
	exposure := int64(cost / m.MaxLeverage)
	if c.freeCollateral(mp, sender)-exposure < 0 {
		return types.ErrInsufficientCollateral
	}

	result := m.Orderbook.ProcessOrder(engine.NewMarketOrderRequest(base, quote, side, quantity))
	if fail := result[0].Failure; fail != nil {
		return types.ErrOrderRequest
	}
	return c.settle(m, mp, sender, result)
}

// settle applies fills to both sides' positions, realizes PnL against the
// oracle price, and refreshes open interest and the last traded price.
func (c *Controller) settle(m *FuturesMarket, mp *Marketplace, sender types.AccountPubKey, result engine.OrderProcessingResult) error {
	accepted := result[0].Success
	incomingID := accepted.OrderID
	m.OrderToAccount[incomingID] = sender
	acct := m.account(sender)
	remaining := accepted.Quantity

	c.events.Push(types.NewExecutionEvent(types.EventFuturesOrderNew, &types.OrderEventBody{
		Account: sender, OrderID: incomingID, Side: uint64(accepted.Side), Price: accepted.Price, Quantity: accepted.Quantity,
	}))

	for _, out := range result[1:] {
		if out.Failure != nil {
			continue
		}
		ev := out.Success
		if ev.OrderID == incomingID {
			remaining -= ev.Quantity
			c.pushFillEvent(sender, ev)
			continue
		}

		maker := m.OrderToAccount[ev.OrderID]
		q, p := ev.Quantity, ev.Price

		c.applyFill(m, mp, sender, accepted.Side, q, p)
		c.applyFill(m, mp, maker, accepted.Side.Opposite(), q, p)

		// decrement the maker's open order record
		makerAcct := m.account(maker)
		if o, ok := makerAcct.OpenOrders[ev.OrderID]; ok {
			if ev.Quantity >= o.Quantity {
				delete(makerAcct.OpenOrders, ev.OrderID)
				delete(m.OrderToAccount, ev.OrderID)
			} else {
				o.Quantity -= ev.Quantity
			}
		}
		m.LastTradedPrice = p
		c.pushFillEvent(maker, ev)
	}

	if remaining > 0 {
		if _, resting := m.Orderbook.Lookup(incomingID); resting {
			acct.OpenOrders[incomingID] = &FuturesOrder{OrderID: incomingID, Side: accepted.Side, Price: accepted.Price, Quantity: remaining}
		} else {
			delete(m.OrderToAccount, incomingID)
		}
	} else {
		delete(m.OrderToAccount, incomingID)
	}

	c.refreshOpenInterest(m)
	return nil
}

// applyFill merges one fill into a position: weighted average on same-side
// increase, netting on the opposite side, flip when the fill exceeds the
// position. Realized PnL on reductions settles into the deposit ledger at
// the oracle price of record.
func (c *Controller) applyFill(m *FuturesMarket, mp *Marketplace, pk types.AccountPubKey, side engine.OrderSide, quantity, price uint64) {
	acct := m.account(pk)
	pos := acct.Position

	if pos == nil || pos.Quantity == 0 {
		acct.Position = &FuturesPosition{Side: side, Quantity: quantity, AveragePrice: price}
		return
	}

	if pos.Side == side {
		newQty := pos.Quantity + quantity
		pos.AveragePrice = (pos.AveragePrice*pos.Quantity + price*quantity) / newQty
		pos.Quantity = newQty
		return
	}

	switch {
	case quantity < pos.Quantity:
		m.deposits[pk] += closePnL(pos, quantity, m.OraclePrice)
		pos.Quantity -= quantity
	case quantity == pos.Quantity:
		m.deposits[pk] += closePnL(pos, quantity, m.OraclePrice)
		acct.Position = nil
	default:
		m.deposits[pk] += closePnL(pos, pos.Quantity, m.OraclePrice)
		acct.Position = &FuturesPosition{Side: side, Quantity: quantity - pos.Quantity, AveragePrice: price}
	}
}

// closePnL realizes quantity of the position against the mark price.
func closePnL(pos *FuturesPosition, quantity uint64, markPrice uint64) int64 {
	diff := int64(markPrice) - int64(pos.AveragePrice)
	if pos.Side == engine.Ask {
		diff = -diff
	}
	return diff * int64(quantity)
}

// refreshOpenInterest recomputes open interest as the sum of long position
// quantities.
func (c *Controller) refreshOpenInterest(m *FuturesMarket) {
	var oi uint64
	for _, acct := range m.Accounts {
		if acct.Position != nil && acct.Position.Side == engine.Bid {
			oi += acct.Position.Quantity
		}
	}
	m.OpenInterest = oi
}

func (c *Controller) pushFillEvent(owner types.AccountPubKey, ev *engine.Success) {
	t := types.EventFuturesOrderPartialFill
	if ev.Kind == engine.Filled {
		t = types.EventFuturesOrderFill
	}
	c.events.Push(types.NewExecutionEvent(t, &types.OrderEventBody{
		Account: owner, OrderID: ev.OrderID, Side: uint64(ev.Side), Price: ev.Price, Quantity: ev.Quantity,
	}))
}

// UpdateOrder re-prices an open order after re-checking margin with the new
// exposure.
func (c *Controller) UpdateOrder(sender, admin types.AccountPubKey, base types.AssetID, side engine.OrderSide, price, quantity, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	m, ok := mp.Markets[base]
	if !ok {
		return types.ErrMarketExistence
	}
	if m.OrderToAccount[orderID] != sender {
		return types.ErrOrderRequest
	}
	acct := m.account(sender)
	o, ok := acct.OpenOrders[orderID]
	if !ok || o.Side != side {
		return types.ErrOrderRequest
	}
	if price == 0 || quantity == 0 {
		return types.ErrOrderRequest
	}

	oldExposure := int64(o.Quantity * o.Price / m.MaxLeverage)
	newExposure := int64(quantity * price / m.MaxLeverage)
	if c.freeCollateral(mp, sender)+oldExposure-newExposure < 0 {
		return types.ErrInsufficientCollateral
	}

	result := m.Orderbook.ProcessOrder(engine.NewUpdateOrderRequest(base, m.QuoteAssetID, side, price, quantity, orderID))
	if fail := result[0].Failure; fail != nil {
		return types.ErrOrderRequest
	}
	o.Price = price
	o.Quantity = quantity

	c.events.Push(types.NewExecutionEvent(types.EventFuturesOrderUpdate, &types.OrderEventBody{
		Account: sender, OrderID: orderID, Side: uint64(side), Price: price, Quantity: quantity,
	}))
	return nil
}

// CancelOrder removes one open order.
func (c *Controller) CancelOrder(sender, admin types.AccountPubKey, base types.AssetID, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.market(admin, base)
	if err != nil {
		return err
	}
	if m.OrderToAccount[orderID] != sender {
		return types.ErrOrderRequest
	}
	return c.cancelLocked(m, sender, orderID)
}

func (c *Controller) cancelLocked(m *FuturesMarket, owner types.AccountPubKey, orderID uint64) error {
	acct := m.account(owner)
	o, ok := acct.OpenOrders[orderID]
	if !ok {
		return types.ErrOrderRequest
	}
	result := m.Orderbook.ProcessOrder(engine.NewCancelOrderRequest(m.BaseAssetID, m.QuoteAssetID, o.Side, orderID))
	if fail := result[0].Failure; fail != nil {
		return types.ErrOrderRequest
	}
	delete(acct.OpenOrders, orderID)
	delete(m.OrderToAccount, orderID)

	c.events.Push(types.NewExecutionEvent(types.EventFuturesOrderCancel, &types.OrderEventBody{
		Account: owner, OrderID: orderID, Side: uint64(o.Side), Price: o.Price, Quantity: o.Quantity,
	}))
	return nil
}

// CancelAll removes every open order of target across the marketplace's
// markets. Allowed for the target itself, the admin, or anyone once the
// target's free collateral has gone negative.
func (c *Controller) CancelAll(sender, admin, target types.AccountPubKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	if sender != target && sender != admin && c.freeCollateral(mp, target) >= 0 {
		return types.ErrLiquidateCollateral
	}

	bases := make([]types.AssetID, 0, len(mp.Markets))
	for id := range mp.Markets {
		bases = append(bases, id)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	for _, id := range bases {
		m := mp.Markets[id]
		acct, ok := m.Accounts[target]
		if !ok {
			continue
		}
		ids := make([]uint64, 0, len(acct.OpenOrders))
		for oid := range acct.OpenOrders {
			ids = append(ids, oid)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, oid := range ids {
			if err := c.cancelLocked(m, target, oid); err != nil {
				return err
			}
		}
	}
	return nil
}

// Liquidate closes the target's position. Pre-conditions: negative free
// collateral, no open orders, and the request matches the position
// (opposing side, full quantity). The target settles at the oracle price
// and additionally pays the liquidation penalty, which may push its
// deposit negative; the liquidator inherits the position at the oracle
// price and collects the penalty.
func (c *Controller) Liquidate(sender, admin types.AccountPubKey, base types.AssetID, target types.AccountPubKey, side engine.OrderSide, price, quantity uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return types.ErrMarketplaceExistence
	}
	m, ok := mp.Markets[base]
	if !ok {
		return types.ErrMarketExistence
	}

	if c.freeCollateral(mp, target) >= 0 {
		return types.ErrLiquidateCollateral
	}
	targetAcct, ok := m.Accounts[target]
	if !ok || targetAcct.Position == nil || targetAcct.Position.Quantity == 0 {
		return types.ErrLiquidatePosition
	}
	for _, mkt := range mp.Markets {
		if acct, ok := mkt.Accounts[target]; ok && len(acct.OpenOrders) > 0 {
			return types.ErrLiquidateOpenOrders
		}
	}
	pos := targetAcct.Position
	if pos.Side != side.Opposite() || pos.Quantity != quantity {
		return types.ErrLiquidatePosition
	}

	// close the target at oracle and charge the penalty
	mp.Deposits[target] += closePnL(pos, quantity, m.OraclePrice)
	penalty := int64(float64(quantity*m.OraclePrice) * m.LiquidationFeePercent)
	mp.Deposits[target] -= penalty
	mp.Deposits[sender] += penalty

	// the liquidator steps into the position at the oracle price
	c.applyFill(m, mp, sender, pos.Side, quantity, m.OraclePrice)
	targetAcct.Position = nil

	c.refreshOpenInterest(m)
	c.events.Push(types.NewExecutionEvent(types.EventFuturesLiquidate, &types.OrderEventBody{
		Account: target, Side: uint64(side), Price: m.OraclePrice, Quantity: quantity,
	}))
	return nil
}

// Deposit returns the target's deposit balance in admin's marketplace.
func (c *Controller) Deposit(admin, pk types.AccountPubKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mp, ok := c.marketplaces[admin]
	if !ok {
		return 0, types.ErrMarketplaceExistence
	}
	return mp.Deposits[pk], nil
}

// FreeCollateral exposes the margin headroom of one account.
func (c *Controller) FreeCollateral(admin, pk types.AccountPubKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mp, ok := c.marketplaces[admin]
	if !ok {
		return 0, types.ErrMarketplaceExistence
	}
	return c.freeCollateral(mp, pk), nil
}

// MarketplaceView is the read-only RPC projection of one marketplace.
type MarketplaceView struct {
	Admin        types.AccountPubKey
	QuoteAssetID types.AssetID
	LatestTime   uint64
	Markets      []MarketView
}

type MarketView struct {
	BaseAssetID     types.AssetID
	QuoteAssetID    types.AssetID
	MaxLeverage     uint64
	OraclePrice     uint64
	LastTradedPrice uint64
	OpenInterest    uint64
}

// UserView is the read-only RPC projection of one user in a marketplace.
type UserView struct {
	Deposit    int64
	OpenOrders []FuturesOrder
	Positions  []FuturesPosition
}

// Marketplaces lists every marketplace sorted by admin key.
func (c *Controller) Marketplaces() []MarketplaceView {
	c.mu.Lock()
	defer c.mu.Unlock()

	admins := make([]types.AccountPubKey, 0, len(c.marketplaces))
	for pk := range c.marketplaces {
		admins = append(admins, pk)
	}
	sort.Slice(admins, func(i, j int) bool { return bytes.Compare(admins[i][:], admins[j][:]) < 0 })

	out := make([]MarketplaceView, 0, len(admins))
	for _, admin := range admins {
		mp := c.marketplaces[admin]
		view := MarketplaceView{Admin: admin, QuoteAssetID: mp.QuoteAssetID, LatestTime: mp.LatestTime}
		bases := make([]types.AssetID, 0, len(mp.Markets))
		for id := range mp.Markets {
			bases = append(bases, id)
		}
		sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
		for _, id := range bases {
			m := mp.Markets[id]
			view.Markets = append(view.Markets, MarketView{
				BaseAssetID: m.BaseAssetID, QuoteAssetID: m.QuoteAssetID, MaxLeverage: m.MaxLeverage,
				OraclePrice: m.OraclePrice, LastTradedPrice: m.LastTradedPrice, OpenInterest: m.OpenInterest,
			})
		}
		out = append(out, view)
	}
	return out
}

// User returns the per-user futures state in one marketplace.
func (c *Controller) User(admin, pk types.AccountPubKey) (UserView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mp, ok := c.marketplaces[admin]
	if !ok {
		return UserView{}, types.ErrMarketplaceExistence
	}
	view := UserView{Deposit: mp.Deposits[pk]}
	bases := make([]types.AssetID, 0, len(mp.Markets))
	for id := range mp.Markets {
		bases = append(bases, id)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	for _, id := range bases {
		m := mp.Markets[id]
		acct, ok := m.Accounts[pk]
		if !ok {
			continue
		}
		ids := make([]uint64, 0, len(acct.OpenOrders))
		for oid := range acct.OpenOrders {
			ids = append(ids, oid)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, oid := range ids {
			view.OpenOrders = append(view.OpenOrders, *acct.OpenOrders[oid])
		}
		if acct.Position != nil && acct.Position.Quantity != 0 {
			view.Positions = append(view.Positions, *acct.Position)
		}
	}
	return view, nil
}

// ProcessEndOfBlock snapshots the top depth levels of every futures book.
func (c *Controller) ProcessEndOfBlock(w DepthWriter, blockNumber types.BlockNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for admin, mp := range c.marketplaces {
		for base, m := range mp.Markets {
			key := fmt.Sprintf("futures_%x_%d_%d", admin[:4], base, mp.QuoteAssetID)
			_ = w.WriteOrderbookDepth(key, m.Orderbook.Depth(DepthLevels))
		}
	}
}
