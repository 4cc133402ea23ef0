// Package bank implements the asset registry and per-account balances.
package bank

import (
	"bytes"
	"encoding/gob"
	"sort"
	"sync"

	"github.com/gdex-labs/gdex/pkg/controller/event"
	"github.com/gdex-labs/gdex/pkg/types"
)

// ControllerAccount is the bank controller's own bank account.
var ControllerAccount = types.AccountPubKey([32]byte{'B', 'A', 'N', 'K', 'C', 'O', 'N', 'T', 'R', 'O', 'L', 'L', 'E', 'R', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'})

// Controller owns the asset registry and all bank accounts.
type Controller struct {
	mu     sync.Mutex
	events *event.Manager

	assets   map[types.AssetID]types.Asset
	accounts map[types.AccountPubKey]*types.BankAccount
	nAssets  uint64
}

func NewController() *Controller {
	return &Controller{
		events:   event.NewManager(),
		assets:   make(map[types.AssetID]types.Asset),
		accounts: make(map[types.AccountPubKey]*types.BankAccount),
	}
}

// Initialize wires the shared event manager.
func (c *Controller) Initialize(em *event.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = em
}

// InitializeControllerAccount creates the controller's own bank account.
func (c *Controller) InitializeControllerAccount() error {
	return c.CreateAccount(ControllerAccount)
}

// HandleConsensusTransaction dispatches a bank transaction.
func (c *Controller) HandleConsensusTransaction(tx *types.Transaction) error {
	switch tx.RequestType {
	case types.RequestPayment:
		var req types.PaymentRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		if err := c.Transfer(tx.Sender, req.Receiver, req.AssetID, req.Quantity); err != nil {
			return err
		}
		c.events.Push(types.NewExecutionEvent(types.EventPaymentSuccess, &types.PaymentEventBody{
			Sender: tx.Sender, Receiver: req.Receiver, AssetID: req.AssetID, Quantity: req.Quantity,
		}))
		return nil
	case types.RequestCreateAsset:
		var req types.CreateAssetRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		assetID, err := c.CreateAsset(tx.Sender)
		if err != nil {
			return err
		}
		c.events.Push(types.NewExecutionEvent(types.EventAssetCreated, &types.AssetCreatedEventBody{
			AssetID: assetID, Owner: tx.Sender,
		}))
		return nil
	}
	return types.ErrInvalidRequestType
}

// CreateAccount registers a fresh account; double creation is an error.
func (c *Controller) CreateAccount(pk types.AccountPubKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createAccountLocked(pk)
}

func (c *Controller) createAccountLocked(pk types.AccountPubKey) error {
	if _, ok := c.accounts[pk]; ok {
		return types.ErrAccountCreation
	}
	c.accounts[pk] = types.NewBankAccount(pk)
	return nil
}

// CreateAsset mints a fixed supply to the owner and returns the new asset
// id. The very first asset ever created also creates the owner's account,
// which bootstraps genesis.
func (c *Controller) CreateAsset(owner types.AccountPubKey) (types.AssetID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nAssets == 0 {
		if err := c.createAccountLocked(owner); err != nil && err != types.ErrAccountCreation {
			return 0, err
		}
	}
	if _, ok := c.accounts[owner]; !ok {
		return 0, types.ErrAccountLookup
	}

	assetID := c.nAssets
	c.assets[assetID] = types.Asset{AssetID: assetID, OwnerPubKey: owner}
	if err := c.updateBalanceLocked(owner, assetID, int64(types.CreatedAssetBalance)); err != nil {
		return 0, err
	}
	c.nAssets++
	return assetID, nil
}

// AssetExists reports whether an asset id has been minted.
func (c *Controller) AssetExists(asset types.AssetID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.assets[asset]
	return ok
}

// GetBalance returns the balance, zero for assets never received. Unknown
// accounts are an error.
func (c *Controller) GetBalance(pk types.AccountPubKey, asset types.AssetID) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acct, ok := c.accounts[pk]
	if !ok {
		return 0, types.ErrAccountLookup
	}
	return acct.Balance(asset), nil
}

// UpdateBalance applies a signed delta. A negative delta that would drive
// the balance below zero fails without mutating.
func (c *Controller) UpdateBalance(pk types.AccountPubKey, asset types.AssetID, delta int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateBalanceLocked(pk, asset, delta)
}

func (c *Controller) updateBalanceLocked(pk types.AccountPubKey, asset types.AssetID, delta int64) error {
	acct, ok := c.accounts[pk]
	if !ok {
		return types.ErrAccountLookup
	}
	prev := int64(acct.Balance(asset))
	if prev+delta < 0 {
		return types.ErrPaymentRequest
	}
	acct.SetBalance(asset, uint64(prev+delta))
	return nil
}

// Transfer moves amount between accounts. Receiving the primary asset
// implicitly creates the destination account; any other asset requires an
// existing account.
func (c *Controller) Transfer(from, to types.AccountPubKey, asset types.AssetID, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fromAcct, ok := c.accounts[from]
	if !ok {
		return types.ErrAccountLookup
	}
	if fromAcct.Balance(asset) < amount {
		return types.ErrPaymentRequest
	}

	if _, ok := c.accounts[to]; !ok {
		if asset != types.PrimaryAssetID {
			return types.ErrAccountLookup
		}
		if err := c.createAccountLocked(to); err != nil {
			return err
		}
	}

	if err := c.updateBalanceLocked(from, asset, -int64(amount)); err != nil {
		return err
	}
	return c.updateBalanceLocked(to, asset, int64(amount))
}

// AccountExists reports whether pk has a bank account.
func (c *Controller) AccountExists(pk types.AccountPubKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.accounts[pk]
	return ok
}

// snapshot is the deterministic serialized form: accounts and balances are
// sorted so two equal controllers encode to identical bytes.
type snapshot struct {
	NAssets  uint64
	Assets   []types.Asset
	Accounts []accountSnapshot
}

type accountSnapshot struct {
	PubKey   types.AccountPubKey
	AssetIDs []types.AssetID
	Balances []uint64
}

// CatchupState serializes the full controller state.
func (c *Controller) CatchupState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := snapshot{NAssets: c.nAssets}
	for id := uint64(0); id < c.nAssets; id++ {
		snap.Assets = append(snap.Assets, c.assets[id])
	}

	pks := make([]types.AccountPubKey, 0, len(c.accounts))
	for pk := range c.accounts {
		pks = append(pks, pk)
	}
	sort.Slice(pks, func(i, j int) bool { return bytes.Compare(pks[i][:], pks[j][:]) < 0 })
	for _, pk := range pks {
		acct := c.accounts[pk]
		as := accountSnapshot{PubKey: pk}
		ids := make([]types.AssetID, 0, len(acct.Balances))
		for id := range acct.Balances {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			as.AssetIDs = append(as.AssetIDs, id)
			as.Balances = append(as.Balances, acct.Balances[id])
		}
		snap.Accounts = append(snap.Accounts, as)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, types.ErrSerialization
	}
	return buf.Bytes(), nil
}

// LoadCatchupState replaces the controller state from a snapshot.
func (c *Controller) LoadCatchupState(b []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&snap); err != nil {
		return types.ErrDeserialization
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nAssets = snap.NAssets
	c.assets = make(map[types.AssetID]types.Asset, len(snap.Assets))
	for _, a := range snap.Assets {
		c.assets[a.AssetID] = a
	}
	c.accounts = make(map[types.AccountPubKey]*types.BankAccount, len(snap.Accounts))
	for _, as := range snap.Accounts {
		acct := types.NewBankAccount(as.PubKey)
		for i, id := range as.AssetIDs {
			acct.SetBalance(id, as.Balances[i])
		}
		c.accounts[as.PubKey] = acct
	}
	return nil
}
