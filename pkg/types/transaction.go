package types

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gdex-labs/gdex/pkg/crypto"
)

// ControllerType routes a transaction to the controller owning its state.
type ControllerType int32

const (
	ControllerBank      ControllerType = 0
	ControllerStake     ControllerType = 1
	ControllerSpot      ControllerType = 2
	ControllerConsensus ControllerType = 3
	ControllerFutures   ControllerType = 4
)

func ControllerTypeFromInt32(v int32) (ControllerType, error) {
	switch ControllerType(v) {
	case ControllerBank, ControllerStake, ControllerSpot, ControllerConsensus, ControllerFutures:
		return ControllerType(v), nil
	}
	return 0, ErrInvalidController
}

func (c ControllerType) String() string {
	switch c {
	case ControllerBank:
		return "bank"
	case ControllerStake:
		return "stake"
	case ControllerSpot:
		return "spot"
	case ControllerConsensus:
		return "consensus"
	case ControllerFutures:
		return "futures"
	}
	return "unknown"
}

// RequestType selects the handler inside the target controller.
type RequestType int32

const (
	// bank
	RequestPayment     RequestType = 0
	RequestCreateAsset RequestType = 1
	// spot
	RequestCreateOrderbook RequestType = 2
	RequestMarketOrder     RequestType = 3
	RequestLimitOrder      RequestType = 4
	RequestUpdateOrder     RequestType = 5
	RequestCancelOrder     RequestType = 6
	// futures
	RequestCreateMarketplace  RequestType = 7
	RequestCreateMarket       RequestType = 8
	RequestUpdateMarketParams RequestType = 9
	RequestUpdateTime         RequestType = 10
	RequestUpdatePrices       RequestType = 11
	RequestAccountDeposit     RequestType = 12
	RequestAccountWithdrawal  RequestType = 13
	RequestFuturesMarketOrder RequestType = 14
	RequestFuturesLimitOrder  RequestType = 15
	RequestFuturesUpdateOrder RequestType = 16
	RequestFuturesCancelOrder RequestType = 17
	RequestFuturesCancelAll   RequestType = 18
	RequestFuturesLiquidate   RequestType = 19
	// stake
	RequestStake   RequestType = 20
	RequestUnstake RequestType = 21
)

// ProtoVersion tags every transaction envelope.
var ProtoVersion = Version{Major: 0, Minor: 0, Patch: 0}

// DefaultTransactionFee is applied by client builders unless overridden.
const DefaultTransactionFee uint64 = 1000

// Version of the transaction envelope encoding.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

func (v Version) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Major))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Minor))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Patch))
	return b
}

func (v *Version) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case 1:
			v.Major = uint32(val)
		case 2:
			v.Minor = uint32(val)
		case 3:
			v.Patch = uint32(val)
		}
	})
}

// Transaction is the wire envelope every client request travels in. The
// digest signed by the sender is BLAKE2b-256 of the canonical encoding.
type Transaction struct {
	Version          Version
	Sender           AccountPubKey
	TargetController ControllerType
	RequestType      RequestType
	RecentBlockHash  crypto.Digest
	Fee              uint64
	RequestBytes     []byte
}

// NewTransaction builds an envelope carrying an already-serialized request
// payload.
func NewTransaction(sender AccountPubKey, controller ControllerType, request RequestType, recentBlockHash crypto.Digest, fee uint64, requestBytes []byte) *Transaction {
	return &Transaction{
		Version:          ProtoVersion,
		Sender:           sender,
		TargetController: controller,
		RequestType:      request,
		RecentBlockHash:  recentBlockHash,
		Fee:              fee,
		RequestBytes:     requestBytes,
	}
}

// Marshal encodes the transaction with the protobuf wire format.
func (t *Transaction) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, t.Version.marshal())
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, t.Sender[:])
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.TargetController))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.RequestType))
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, t.RecentBlockHash[:])
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, t.Fee)
	b = protowire.AppendTag(b, 7, protowire.BytesType)
	b = protowire.AppendBytes(b, t.RequestBytes)
	return b
}

// Unmarshal decodes a transaction envelope.
func (t *Transaction) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			var v Version
			if err := v.unmarshal(raw); err != nil {
				verr = err
				return
			}
			t.Version = v
		case 2:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			t.Sender = pk
		case 3:
			t.TargetController = ControllerType(int32(val))
		case 4:
			t.RequestType = RequestType(int32(val))
		case 5:
			d, err := crypto.DigestFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			t.RecentBlockHash = d
		case 6:
			t.Fee = val
		case 7:
			t.RequestBytes = append([]byte(nil), raw...)
		}
	})
	if err != nil {
		return err
	}
	return verr
}

// Digest is the BLAKE2b-256 hash of the serialized transaction; it is the
// message the sender signs and the key of the replay cache.
func (t *Transaction) Digest() crypto.Digest {
	return crypto.Hash(t.Marshal())
}

// Sign wraps the transaction in a SignedTransaction carrying an Ed25519
// signature over the digest.
func (t *Transaction) Sign(kp *crypto.KeyPair) (*SignedTransaction, error) {
	d := t.Digest()
	sig := kp.Sign(d.Bytes())
	if len(sig) != crypto.SignatureSize {
		return nil, ErrSigning
	}
	return &SignedTransaction{Transaction: t, Signature: sig}, nil
}

// SignedTransaction pairs a transaction with the sender's signature of its
// digest.
type SignedTransaction struct {
	Transaction *Transaction
	Signature   []byte
}

func (st *SignedTransaction) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, st.Transaction.Marshal())
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, st.Signature)
	return b
}

func (st *SignedTransaction) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, _ uint64, raw []byte) {
		switch num {
		case 1:
			tx := new(Transaction)
			if err := tx.Unmarshal(raw); err != nil {
				verr = err
				return
			}
			st.Transaction = tx
		case 2:
			st.Signature = append([]byte(nil), raw...)
		}
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return verr
	}
	if st.Transaction == nil {
		return ErrDeserialization
	}
	return verr
}

// VerifySignature checks the Ed25519 signature against the declared sender.
func (st *SignedTransaction) VerifySignature() error {
	if len(st.Signature) != crypto.SignatureSize {
		return ErrTransactionSignature
	}
	d := st.Transaction.Digest()
	if !crypto.Verify(st.Transaction.Sender.Bytes(), d.Bytes(), st.Signature) {
		return ErrTransactionSignature
	}
	return nil
}
