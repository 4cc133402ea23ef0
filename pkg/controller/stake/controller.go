// Package stake manages staking of the primary asset and leader
// eligibility accounting.
package stake

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"math/rand"
	"sort"
	"sync"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/controller/event"
	"github.com/gdex-labs/gdex/pkg/crypto"
	"github.com/gdex-labs/gdex/pkg/types"
)

var ControllerAccount = types.AccountPubKey([32]byte{'S', 'T', 'A', 'K', 'E', 'C', 'O', 'N', 'T', 'R', 'O', 'L', 'L', 'E', 'R', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'})

// EligibilityThreshold is the stake fraction above which a validator may
// lead: staked/total_staked > 1%.
const EligibilityThreshold = 0.01

// Controller tracks per-account staked amounts. Staking moves the primary
// asset out of the bank; unstaking moves it back.
type Controller struct {
	mu     sync.Mutex
	events *event.Manager
	bank   *bank.Controller

	stakeAccounts map[types.AccountPubKey]*types.StakeAccount
	totalStaked   uint64
}

func NewController(bankController *bank.Controller) *Controller {
	return &Controller{
		events:        event.NewManager(),
		bank:          bankController,
		stakeAccounts: make(map[types.AccountPubKey]*types.StakeAccount),
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
	case types.RequestStake:
		var req types.StakeRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.Stake(tx.Sender, req.Quantity)
	case types.RequestUnstake:
		var req types.UnstakeRequest
		if err := req.Unmarshal(tx.RequestBytes); err != nil {
			return err
		}
		return c.Unstake(tx.Sender, req.Quantity)
	}
	return types.ErrInvalidRequestType
}

// CreateAccount registers an empty stake account.
func (c *Controller) CreateAccount(pk types.AccountPubKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.stakeAccounts[pk]; ok {
		return types.ErrAccountCreation
	}
	c.stakeAccounts[pk] = types.NewStakeAccount(pk)
	return nil
}

// Stake debits the primary asset from the bank and credits the stake
// account, lazily creating it.
func (c *Controller) Stake(pk types.AccountPubKey, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bank.UpdateBalance(pk, types.PrimaryAssetID, -int64(amount)); err != nil {
		return err
	}
	acct, ok := c.stakeAccounts[pk]
	if !ok {
		acct = types.NewStakeAccount(pk)
		c.stakeAccounts[pk] = acct
	}
	acct.StakedAmount += amount
	c.totalStaked += amount
	return nil
}

// Unstake reverses a stake; insufficient staked amount fails before any
// mutation.
func (c *Controller) Unstake(pk types.AccountPubKey, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct, ok := c.stakeAccounts[pk]
	if !ok {
		return types.ErrAccountLookup
	}
	if acct.StakedAmount < amount {
		return types.ErrStakeRequest
	}
	if err := c.bank.UpdateBalance(pk, types.PrimaryAssetID, int64(amount)); err != nil {
		return err
	}
	acct.StakedAmount -= amount
	c.totalStaked -= amount
	return nil
}

// GetStaked returns the staked amount of one account.
func (c *Controller) GetStaked(pk types.AccountPubKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acct, ok := c.stakeAccounts[pk]
	if !ok {
		return 0, types.ErrAccountLookup
	}
	return acct.StakedAmount, nil
}

// GetTotalStaked returns the sum of all staked amounts.
func (c *Controller) GetTotalStaked() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStaked
}

// Eligible reports whether pk holds a large enough stake fraction to lead.
func (c *Controller) Eligible(pk types.AccountPubKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.totalStaked == 0 {
		return false
	}
	acct, ok := c.stakeAccounts[pk]
	if !ok {
		return false
	}
	return float64(acct.StakedAmount)/float64(c.totalStaked) > EligibilityThreshold
}

// SelectLeader picks the next block's leader uniformly among eligible
// validators with a deterministic RNG seeded by the previous block digest.
func (c *Controller) SelectLeader(prevBlockDigest crypto.Digest, validators []types.AccountPubKey) (types.AccountPubKey, bool) {
	eligible := make([]types.AccountPubKey, 0, len(validators))
	for _, v := range validators {
		if c.Eligible(v) {
			eligible = append(eligible, v)
		}
	}
	if len(eligible) == 0 {
		return types.AccountPubKey{}, false
	}
	sort.Slice(eligible, func(i, j int) bool { return bytes.Compare(eligible[i][:], eligible[j][:]) < 0 })

	seed := int64(binary.LittleEndian.Uint64(prevBlockDigest[:8]))
	rng := rand.New(rand.NewSource(seed))
	return eligible[rng.Intn(len(eligible))], true
}

type snapshot struct {
	TotalStaked uint64
	Accounts    []types.StakeAccount
}

func (c *Controller) CatchupState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := snapshot{TotalStaked: c.totalStaked}
	pks := make([]types.AccountPubKey, 0, len(c.stakeAccounts))
	for pk := range c.stakeAccounts {
		pks = append(pks, pk)
	}
	sort.Slice(pks, func(i, j int) bool { return bytes.Compare(pks[i][:], pks[j][:]) < 0 })
	for _, pk := range pks {
		snap.Accounts = append(snap.Accounts, *c.stakeAccounts[pk])
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
	c.totalStaked = snap.TotalStaked
	c.stakeAccounts = make(map[types.AccountPubKey]*types.StakeAccount, len(snap.Accounts))
	for i := range snap.Accounts {
		acct := snap.Accounts[i]
		c.stakeAccounts[acct.PubKey] = &acct
	}
	return nil
}
