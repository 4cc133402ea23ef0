package futures

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/gdex-labs/gdex/pkg/engine"
	"github.com/gdex-labs/gdex/pkg/types"
)

// Snapshot types flatten the marketplace hierarchy with every map sorted,
// so equal controllers serialize to identical bytes. The deposit backrefs
// are re-installed on load.

type snapshot struct {
	Marketplaces []marketplaceSnapshot
}

type marketplaceSnapshot struct {
	Admin        types.AccountPubKey
	QuoteAssetID types.AssetID
	LatestTime   uint64
	Markets      []marketSnapshot
	Deposits     []depositEntry
}

type depositEntry struct {
	PubKey types.AccountPubKey
	Amount int64
}

type marketSnapshot struct {
	BaseAssetID           types.AssetID
	QuoteAssetID          types.AssetID
	MaxLeverage           uint64
	OraclePrice           uint64
	LastTradedPrice       uint64
	OpenInterest          uint64
	LiquidationFeePercent float64
	Orderbook             *engine.Orderbook
	OrderOwners           []orderOwner
	Accounts              []accountSnapshot
}

type orderOwner struct {
	OrderID uint64
	Owner   types.AccountPubKey
}

type accountSnapshot struct {
	PubKey     types.AccountPubKey
	OpenOrders []FuturesOrder
	Position   *FuturesPosition
}

func (c *Controller) CatchupState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap snapshot
	admins := make([]types.AccountPubKey, 0, len(c.marketplaces))
	for pk := range c.marketplaces {
		admins = append(admins, pk)
	}
	sort.Slice(admins, func(i, j int) bool { return bytes.Compare(admins[i][:], admins[j][:]) < 0 })

	for _, admin := range admins {
		mp := c.marketplaces[admin]
		ms := marketplaceSnapshot{Admin: admin, QuoteAssetID: mp.QuoteAssetID, LatestTime: mp.LatestTime}

		depositors := make([]types.AccountPubKey, 0, len(mp.Deposits))
		for pk := range mp.Deposits {
			depositors = append(depositors, pk)
		}
		sort.Slice(depositors, func(i, j int) bool { return bytes.Compare(depositors[i][:], depositors[j][:]) < 0 })
		for _, pk := range depositors {
			ms.Deposits = append(ms.Deposits, depositEntry{PubKey: pk, Amount: mp.Deposits[pk]})
		}

		bases := make([]types.AssetID, 0, len(mp.Markets))
		for id := range mp.Markets {
			bases = append(bases, id)
		}
		sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
		for _, base := range bases {
			m := mp.Markets[base]
			mks := marketSnapshot{
				BaseAssetID: m.BaseAssetID, QuoteAssetID: m.QuoteAssetID, MaxLeverage: m.MaxLeverage,
				OraclePrice: m.OraclePrice, LastTradedPrice: m.LastTradedPrice, OpenInterest: m.OpenInterest,
				LiquidationFeePercent: m.LiquidationFeePercent, Orderbook: m.Orderbook,
			}

			oids := make([]uint64, 0, len(m.OrderToAccount))
			for id := range m.OrderToAccount {
				oids = append(oids, id)
			}
			sort.Slice(oids, func(i, j int) bool { return oids[i] < oids[j] })
			for _, id := range oids {
				mks.OrderOwners = append(mks.OrderOwners, orderOwner{OrderID: id, Owner: m.OrderToAccount[id]})
			}

			pks := make([]types.AccountPubKey, 0, len(m.Accounts))
			for pk := range m.Accounts {
				pks = append(pks, pk)
			}
			sort.Slice(pks, func(i, j int) bool { return bytes.Compare(pks[i][:], pks[j][:]) < 0 })
			for _, pk := range pks {
				acct := m.Accounts[pk]
				as := accountSnapshot{PubKey: pk, Position: acct.Position}
				ids := make([]uint64, 0, len(acct.OpenOrders))
				for id := range acct.OpenOrders {
					ids = append(ids, id)
				}
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
				for _, id := range ids {
					as.OpenOrders = append(as.OpenOrders, *acct.OpenOrders[id])
				}
				mks.Accounts = append(mks.Accounts, as)
			}

			ms.Markets = append(ms.Markets, mks)
		}
		snap.Marketplaces = append(snap.Marketplaces, ms)
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
	c.marketplaces = make(map[types.AccountPubKey]*Marketplace, len(snap.Marketplaces))
	for _, ms := range snap.Marketplaces {
		mp := &Marketplace{
			QuoteAssetID: ms.QuoteAssetID,
			LatestTime:   ms.LatestTime,
			Markets:      make(map[types.AssetID]*FuturesMarket, len(ms.Markets)),
			Deposits:     make(map[types.AccountPubKey]int64, len(ms.Deposits)),
		}
		for _, d := range ms.Deposits {
			mp.Deposits[d.PubKey] = d.Amount
		}
		for _, mks := range ms.Markets {
			m := &FuturesMarket{
				BaseAssetID: mks.BaseAssetID, QuoteAssetID: mks.QuoteAssetID, MaxLeverage: mks.MaxLeverage,
				OraclePrice: mks.OraclePrice, LastTradedPrice: mks.LastTradedPrice, OpenInterest: mks.OpenInterest,
				LiquidationFeePercent: mks.LiquidationFeePercent,
				Orderbook:             mks.Orderbook,
				OrderToAccount:        make(map[uint64]types.AccountPubKey, len(mks.OrderOwners)),
				Accounts:              make(map[types.AccountPubKey]*FuturesAccount, len(mks.Accounts)),
				deposits:              mp.Deposits,
			}
			for _, oo := range mks.OrderOwners {
				m.OrderToAccount[oo.OrderID] = oo.Owner
			}
			for _, as := range mks.Accounts {
				acct := newFuturesAccount()
				acct.Position = as.Position
				for i := range as.OpenOrders {
					o := as.OpenOrders[i]
					acct.OpenOrders[o.OrderID] = &o
				}
				m.Accounts[as.PubKey] = acct
			}
			mp.Markets[mks.BaseAssetID] = m
		}
		c.marketplaces[ms.Admin] = mp
	}
	return nil
}
