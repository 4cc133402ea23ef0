package types

import "errors"

// Error kinds returned by controllers and the validator pipeline. These
// values are stored inside blocks next to the transactions that produced
// them, so each kind is a stable sentinel rather than a wrapped stack.
var (
	// committee / structural
	ErrInvalidCommittee = errors.New("invalid committee composition")
	ErrInvalidAddress   = errors.New("invalid address")

	// controller state
	ErrAccountCreation = errors.New("account already exists")
	ErrAccountLookup   = errors.New("failed to find account")
	ErrAssetLookup     = errors.New("failed to find asset")

	// transactions
	ErrFailedVerification    = errors.New("sender, payload and signature are not consistent")
	ErrPaymentRequest        = errors.New("payment request failed")
	ErrOrderRequest          = errors.New("order request failed")
	ErrOrderBookCreation     = errors.New("orderbook creation failed")
	ErrOrderbookExistence    = errors.New("orderbook does not exist")
	ErrOrderExceedsBalance   = errors.New("insufficient balance to place order")
	ErrStakeRequest          = errors.New("stake request failed")
	ErrTransactionDuplicate  = errors.New("failed to process duplicate transaction")
	ErrTransactionSignature  = errors.New("failed to verify transaction signature")
	ErrSerialization         = errors.New("failed to serialize object")
	ErrDeserialization       = errors.New("failed to deserialize object")
	ErrSigning               = errors.New("failed to sign transaction")
	ErrConversion            = errors.New("error while converting type")
	ErrValidatorHalted       = errors.New("validator is halted")
	ErrInvalidController     = errors.New("target controller not found")
	ErrInvalidRequestType    = errors.New("controller can not handle request type")

	// futures
	ErrFuturesInitialization   = errors.New("futures market initialization failed")
	ErrFuturesUpdate           = errors.New("futures market parameters update failed")
	ErrFuturesWithdrawal       = errors.New("insufficient collateral available for withdrawal")
	ErrMarketplaceExistence    = errors.New("marketplace does not exist")
	ErrMarketExistence         = errors.New("market existence check failed")
	ErrMarketPrices            = errors.New("failed updating market prices")
	ErrInsufficientCollateral  = errors.New("insufficient collateral for this operation")
	ErrLiquidateCollateral     = errors.New("cannot liquidate, target is above minimum collateral threshold")
	ErrLiquidateOpenOrders     = errors.New("cannot liquidate, target still has open orders")
	ErrLiquidatePosition       = errors.New("cannot liquidate, target position does not match")
)
