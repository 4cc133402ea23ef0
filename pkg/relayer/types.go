package relayer

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gdex-labs/gdex/pkg/controller/futures"
	"github.com/gdex-labs/gdex/pkg/types"
)

// JSON projections of the stored types. Byte identities render as 0x hex.

type BlockInfoResponse struct {
	BlockNumber                 uint64        `json:"block_number"`
	BlockDigest                 hexutil.Bytes `json:"block_digest"`
	ValidatorTimeInMicroseconds uint64        `json:"validator_time_us"`
}

type TransactionResponse struct {
	SerializedTransaction hexutil.Bytes `json:"serialized_transaction"`
	Error                 string        `json:"error,omitempty"`
	EventCount            int           `json:"event_count"`
}

type BlockResponse struct {
	BlockNumber       uint64                `json:"block_number"`
	CertificateDigest hexutil.Bytes         `json:"certificate_digest"`
	Transactions      []TransactionResponse `json:"transactions"`
}

type DepthLevelResponse struct {
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
}

type OrderbookDepthResponse struct {
	Pair string               `json:"pair"`
	Bids []DepthLevelResponse `json:"bids"`
	Asks []DepthLevelResponse `json:"asks"`
}

type CatchupStateResponse struct {
	BlockNumber uint64          `json:"block_number"`
	State       []hexutil.Bytes `json:"state"`
}

type FuturesMarketResponse struct {
	BaseAssetID     uint64 `json:"base_asset_id"`
	QuoteAssetID    uint64 `json:"quote_asset_id"`
	MaxLeverage     uint64 `json:"max_leverage"`
	OraclePrice     uint64 `json:"oracle_price"`
	LastTradedPrice uint64 `json:"last_traded_price"`
	OpenInterest    uint64 `json:"open_interest"`
}

type MarketplaceResponse struct {
	Admin        hexutil.Bytes           `json:"admin"`
	QuoteAssetID uint64                  `json:"quote_asset_id"`
	LatestTime   uint64                  `json:"latest_time"`
	Markets      []FuturesMarketResponse `json:"markets"`
}

type FuturesOrderResponse struct {
	OrderID  uint64 `json:"order_id"`
	Side     uint64 `json:"side"`
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
}

type FuturesPositionResponse struct {
	Side         uint64 `json:"side"`
	Quantity     uint64 `json:"quantity"`
	AveragePrice uint64 `json:"average_price"`
}

type FuturesUserResponse struct {
	Deposit    int64                     `json:"deposit"`
	OpenOrders []FuturesOrderResponse    `json:"open_orders"`
	Positions  []FuturesPositionResponse `json:"positions"`
}

type MetricsResponse struct {
	Metrics map[string]float64 `json:"metrics"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func blockInfoResponse(info *types.BlockInfo) BlockInfoResponse {
	return BlockInfoResponse{
		BlockNumber:                 info.BlockNumber,
		BlockDigest:                 info.BlockDigest.Bytes(),
		ValidatorTimeInMicroseconds: info.ValidatorSystemEpochTimeInMicros,
	}
}

func blockResponse(n uint64, block *types.Block) BlockResponse {
	resp := BlockResponse{
		BlockNumber:       n,
		CertificateDigest: block.CertificateDigest.Bytes(),
	}
	for _, tx := range block.Transactions {
		resp.Transactions = append(resp.Transactions, TransactionResponse{
			SerializedTransaction: tx.SerializedTransaction,
			Error:                 tx.Result.Error,
			EventCount:            len(tx.Result.Body.Events),
		})
	}
	return resp
}

func depthResponse(pair string, depth *types.OrderbookDepth) OrderbookDepthResponse {
	resp := OrderbookDepthResponse{Pair: pair}
	for _, l := range depth.Bids {
		resp.Bids = append(resp.Bids, DepthLevelResponse{Price: l.Price, Quantity: l.Quantity})
	}
	for _, l := range depth.Asks {
		resp.Asks = append(resp.Asks, DepthLevelResponse{Price: l.Price, Quantity: l.Quantity})
	}
	return resp
}

func marketplaceResponses(views []futures.MarketplaceView) []MarketplaceResponse {
	out := make([]MarketplaceResponse, 0, len(views))
	for _, v := range views {
		resp := MarketplaceResponse{
			Admin:        v.Admin.Bytes(),
			QuoteAssetID: v.QuoteAssetID,
			LatestTime:   v.LatestTime,
		}
		for _, m := range v.Markets {
			resp.Markets = append(resp.Markets, FuturesMarketResponse{
				BaseAssetID: m.BaseAssetID, QuoteAssetID: m.QuoteAssetID, MaxLeverage: m.MaxLeverage,
				OraclePrice: m.OraclePrice, LastTradedPrice: m.LastTradedPrice, OpenInterest: m.OpenInterest,
			})
		}
		out = append(out, resp)
	}
	return out
}

func futuresUserResponse(view futures.UserView) FuturesUserResponse {
	resp := FuturesUserResponse{Deposit: view.Deposit}
	for _, o := range view.OpenOrders {
		resp.OpenOrders = append(resp.OpenOrders, FuturesOrderResponse{
			OrderID: o.OrderID, Side: uint64(o.Side), Price: o.Price, Quantity: o.Quantity,
		})
	}
	for _, p := range view.Positions {
		resp.Positions = append(resp.Positions, FuturesPositionResponse{
			Side: uint64(p.Side), Quantity: p.Quantity, AveragePrice: p.AveragePrice,
		})
	}
	return resp
}
