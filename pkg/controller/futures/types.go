package futures

import (
	"github.com/gdex-labs/gdex/pkg/engine"
	"github.com/gdex-labs/gdex/pkg/types"
)

// FuturesOrder is one open order tracked at the account level. Quantity is
// the unfilled remainder.
type FuturesOrder struct {
	OrderID  uint64
	Side     engine.OrderSide
	Price    uint64
	Quantity uint64
}

// FuturesPosition is an open position. Side uses the order-side encoding:
// Bid = long, Ask = short.
type FuturesPosition struct {
	Side         engine.OrderSide
	Quantity     uint64
	AveragePrice uint64
}

// FuturesAccount groups a user's open orders and position in one market.
type FuturesAccount struct {
	OpenOrders map[uint64]*FuturesOrder
	Position   *FuturesPosition
}

func newFuturesAccount() *FuturesAccount {
	return &FuturesAccount{OpenOrders: make(map[uint64]*FuturesOrder)}
}

// FuturesMarket is one perpetual market inside a marketplace. deposits is a
// non-owning reference to the parent marketplace's ledger, installed at
// market construction so fills and liquidations can settle without walking
// back up the hierarchy.
type FuturesMarket struct {
	BaseAssetID     types.AssetID
	QuoteAssetID    types.AssetID
	MaxLeverage     uint64
	OraclePrice     uint64
	LastTradedPrice uint64
	OpenInterest    uint64

	OrderToAccount map[uint64]types.AccountPubKey
	Accounts       map[types.AccountPubKey]*FuturesAccount
	Orderbook      *engine.Orderbook

	LiquidationFeePercent float64

	deposits map[types.AccountPubKey]int64
}

func (m *FuturesMarket) account(pk types.AccountPubKey) *FuturesAccount {
	acct, ok := m.Accounts[pk]
	if !ok {
		acct = newFuturesAccount()
		m.Accounts[pk] = acct
	}
	return acct
}

// Marketplace is an admin-scoped collection of markets sharing one quote
// asset and one deposit ledger. Deposits may go transiently negative after
// an under-collateralized liquidation; the shortfall stays on the book as
// bad debt.
type Marketplace struct {
	QuoteAssetID types.AssetID
	LatestTime   uint64
	Markets      map[types.AssetID]*FuturesMarket
	Deposits     map[types.AccountPubKey]int64
}
