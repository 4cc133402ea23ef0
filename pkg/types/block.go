package types

import (
	"github.com/gdex-labs/gdex/pkg/crypto"
)

// BlockNumber indexes blocks contiguously from zero.
type BlockNumber = uint64

// BlockDigest is the digest of the consensus certificate that ordered the
// block's batch.
type BlockDigest = crypto.Digest

// ExecutedTransaction pairs the serialized signed transaction with the
// result of applying it.
type ExecutedTransaction struct {
	SerializedTransaction []byte
	Result                ExecutionResult
}

// Block is the per-certificate ordered list of executed transactions a
// validator persists. Order is exactly the order delivered by consensus.
type Block struct {
	CertificateDigest BlockDigest
	Transactions      []ExecutedTransaction
}

// BlockInfo is the lightweight index entry for a block.
type BlockInfo struct {
	BlockNumber                      BlockNumber
	BlockDigest                      BlockDigest
	ValidatorSystemEpochTimeInMicros uint64
}

// CatchupState is a whole-controller snapshot: one serialized blob per
// controller, in router order. Snapshots are all-or-nothing.
type CatchupState struct {
	BlockNumber BlockNumber
	State       [][]byte
}

// DepthLevel is one aggregated price level of an orderbook side.
type DepthLevel struct {
	Price    uint64
	Quantity uint64
}

// OrderbookDepth is the end-of-block snapshot of the top levels of one
// orderbook, served to relayers.
type OrderbookDepth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}
