package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountPubKey is a 32-byte Ed25519 public key. It doubles as the user
// identity everywhere in the system, so it is an array and usable as a map
// key.
type AccountPubKey [32]byte

func (pk AccountPubKey) Bytes() []byte  { return pk[:] }
func (pk AccountPubKey) String() string { return hexutil.Encode(pk[:]) }

// PubKeyFromBytes copies b into an AccountPubKey.
func PubKeyFromBytes(b []byte) (AccountPubKey, error) {
	var pk AccountPubKey
	if len(b) != len(pk) {
		return pk, ErrInvalidAddress
	}
	copy(pk[:], b)
	return pk, nil
}

// BankAccount tracks per-asset balances for one user. A missing entry means
// zero; balances never go negative.
type BankAccount struct {
	PubKey   AccountPubKey
	Balances map[AssetID]uint64
}

func NewBankAccount(pk AccountPubKey) *BankAccount {
	return &BankAccount{PubKey: pk, Balances: make(map[AssetID]uint64)}
}

func (a *BankAccount) Balance(asset AssetID) uint64 {
	return a.Balances[asset]
}

func (a *BankAccount) SetBalance(asset AssetID, amount uint64) {
	a.Balances[asset] = amount
}

// StakeAccount tracks the amount of the primary asset a user has staked.
type StakeAccount struct {
	PubKey       AccountPubKey
	StakedAmount uint64
}

func NewStakeAccount(pk AccountPubKey) *StakeAccount {
	return &StakeAccount{PubKey: pk}
}
