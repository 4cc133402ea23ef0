package types

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Request payloads carried in Transaction.RequestBytes, one message per
// RequestType. Field numbers are part of the wire contract and never
// reused.

// ---- bank ----

type CreateAssetRequest struct {
	Dummy uint64
}

func (r *CreateAssetRequest) Marshal() []byte {
	return appendUint64(nil, 1, r.Dummy)
}

func (r *CreateAssetRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		if num == 1 {
			r.Dummy = val
		}
	})
}

type PaymentRequest struct {
	Receiver AccountPubKey
	AssetID  AssetID
	Quantity uint64
}

func (r *PaymentRequest) Marshal() []byte {
	b := appendBytes(nil, 1, r.Receiver[:])
	b = appendUint64(b, 2, r.AssetID)
	return appendUint64(b, 3, r.Quantity)
}

func (r *PaymentRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.Receiver = pk
		case 2:
			r.AssetID = val
		case 3:
			r.Quantity = val
		}
	})
	if err != nil {
		return err
	}
	return verr
}

// ---- stake ----

type StakeRequest struct {
	Quantity uint64
}

func (r *StakeRequest) Marshal() []byte { return appendUint64(nil, 1, r.Quantity) }

func (r *StakeRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		if num == 1 {
			r.Quantity = val
		}
	})
}

type UnstakeRequest struct {
	Quantity uint64
}

func (r *UnstakeRequest) Marshal() []byte { return appendUint64(nil, 1, r.Quantity) }

func (r *UnstakeRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		if num == 1 {
			r.Quantity = val
		}
	})
}

// ---- spot ----

type CreateOrderbookRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
}

func (r *CreateOrderbookRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	return appendUint64(b, 2, r.QuoteAssetID)
}

func (r *CreateOrderbookRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		}
	})
}

type MarketOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Quantity     uint64
}

func (r *MarketOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	return appendUint64(b, 4, r.Quantity)
}

func (r *MarketOrderRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Quantity = val
		}
	})
}

type LimitOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Price        uint64
	Quantity     uint64
}

func (r *LimitOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.Price)
	return appendUint64(b, 5, r.Quantity)
}

func (r *LimitOrderRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Price = val
		case 5:
			r.Quantity = val
		}
	})
}

type UpdateOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Price        uint64
	Quantity     uint64
	OrderID      uint64
}

func (r *UpdateOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.Price)
	b = appendUint64(b, 5, r.Quantity)
	return appendUint64(b, 6, r.OrderID)
}

func (r *UpdateOrderRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Price = val
		case 5:
			r.Quantity = val
		case 6:
			r.OrderID = val
		}
	})
}

type CancelOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	OrderID      uint64
}

func (r *CancelOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	return appendUint64(b, 4, r.OrderID)
}

func (r *CancelOrderRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.OrderID = val
		}
	})
}

// ---- futures ----

type CreateMarketplaceRequest struct {
	QuoteAssetID AssetID
}

func (r *CreateMarketplaceRequest) Marshal() []byte { return appendUint64(nil, 1, r.QuoteAssetID) }

func (r *CreateMarketplaceRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		if num == 1 {
			r.QuoteAssetID = val
		}
	})
}

type CreateMarketRequest struct {
	BaseAssetID AssetID
}

func (r *CreateMarketRequest) Marshal() []byte { return appendUint64(nil, 1, r.BaseAssetID) }

func (r *CreateMarketRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		if num == 1 {
			r.BaseAssetID = val
		}
	})
}

type UpdateMarketParamsRequest struct {
	BaseAssetID AssetID
	MaxLeverage uint64
}

func (r *UpdateMarketParamsRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	return appendUint64(b, 2, r.MaxLeverage)
}

func (r *UpdateMarketParamsRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.MaxLeverage = val
		}
	})
}

type UpdateTimeRequest struct {
	LatestTime uint64
}

func (r *UpdateTimeRequest) Marshal() []byte { return appendUint64(nil, 1, r.LatestTime) }

func (r *UpdateTimeRequest) Unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		if num == 1 {
			r.LatestTime = val
		}
	})
}

type UpdatePricesRequest struct {
	LatestPrices []uint64
}

func (r *UpdatePricesRequest) Marshal() []byte {
	return appendPackedUint64(nil, 1, r.LatestPrices)
}

func (r *UpdatePricesRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		if num != 1 {
			return
		}
		if raw != nil {
			prices, err := consumePackedUint64(raw)
			if err != nil {
				verr = err
				return
			}
			r.LatestPrices = append(r.LatestPrices, prices...)
			return
		}
		r.LatestPrices = append(r.LatestPrices, val)
	})
	if err != nil {
		return err
	}
	return verr
}

type AccountDepositRequest struct {
	Quantity    int64
	MarketAdmin AccountPubKey
}

func (r *AccountDepositRequest) Marshal() []byte {
	b := appendInt64(nil, 1, r.Quantity)
	return appendBytes(b, 2, r.MarketAdmin[:])
}

func (r *AccountDepositRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.Quantity = int64(val)
		case 2:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.MarketAdmin = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type AccountWithdrawalRequest struct {
	Quantity    uint64
	MarketAdmin AccountPubKey
}

func (r *AccountWithdrawalRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.Quantity)
	return appendBytes(b, 2, r.MarketAdmin[:])
}

func (r *AccountWithdrawalRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.Quantity = val
		case 2:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.MarketAdmin = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type FuturesMarketOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Quantity     uint64
	MarketAdmin  AccountPubKey
}

func (r *FuturesMarketOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.Quantity)
	return appendBytes(b, 5, r.MarketAdmin[:])
}

func (r *FuturesMarketOrderRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Quantity = val
		case 5:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.MarketAdmin = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type FuturesLimitOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Price        uint64
	Quantity     uint64
	MarketAdmin  AccountPubKey
}

func (r *FuturesLimitOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.Price)
	b = appendUint64(b, 5, r.Quantity)
	return appendBytes(b, 6, r.MarketAdmin[:])
}

func (r *FuturesLimitOrderRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Price = val
		case 5:
			r.Quantity = val
		case 6:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.MarketAdmin = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type FuturesUpdateOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Price        uint64
	Quantity     uint64
	OrderID      uint64
	MarketAdmin  AccountPubKey
}

func (r *FuturesUpdateOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.Price)
	b = appendUint64(b, 5, r.Quantity)
	b = appendUint64(b, 6, r.OrderID)
	return appendBytes(b, 7, r.MarketAdmin[:])
}

func (r *FuturesUpdateOrderRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Price = val
		case 5:
			r.Quantity = val
		case 6:
			r.OrderID = val
		case 7:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.MarketAdmin = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type FuturesCancelOrderRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	OrderID      uint64
	MarketAdmin  AccountPubKey
}

func (r *FuturesCancelOrderRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.OrderID)
	return appendBytes(b, 5, r.MarketAdmin[:])
}

func (r *FuturesCancelOrderRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.OrderID = val
		case 5:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			r.MarketAdmin = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type CancelAllRequest struct {
	Target      AccountPubKey
	MarketAdmin AccountPubKey
}

func (r *CancelAllRequest) Marshal() []byte {
	b := appendBytes(nil, 1, r.Target[:])
	return appendBytes(b, 2, r.MarketAdmin[:])
}

func (r *CancelAllRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, _ uint64, raw []byte) {
		switch num {
		case 1, 2:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			if num == 1 {
				r.Target = pk
			} else {
				r.MarketAdmin = pk
			}
		}
	})
	if err != nil {
		return err
	}
	return verr
}

type LiquidateRequest struct {
	BaseAssetID  AssetID
	QuoteAssetID AssetID
	Side         uint64
	Price        uint64
	Quantity     uint64
	MarketAdmin  AccountPubKey
	Target       AccountPubKey
}

func (r *LiquidateRequest) Marshal() []byte {
	b := appendUint64(nil, 1, r.BaseAssetID)
	b = appendUint64(b, 2, r.QuoteAssetID)
	b = appendUint64(b, 3, r.Side)
	b = appendUint64(b, 4, r.Price)
	b = appendUint64(b, 5, r.Quantity)
	b = appendBytes(b, 6, r.MarketAdmin[:])
	return appendBytes(b, 7, r.Target[:])
}

func (r *LiquidateRequest) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			r.BaseAssetID = val
		case 2:
			r.QuoteAssetID = val
		case 3:
			r.Side = val
		case 4:
			r.Price = val
		case 5:
			r.Quantity = val
		case 6, 7:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			if num == 6 {
				r.MarketAdmin = pk
			} else {
				r.Target = pk
			}
		}
	})
	if err != nil {
		return err
	}
	return verr
}
