// Package consensusparams stores the batching parameters consensus reads.
// It maps no request types; its snapshot still participates in catchup so
// parameter evolution can be added without a state-format break.
package consensusparams

import (
	"bytes"
	"encoding/gob"
	"sync"
	"time"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/controller/event"
	"github.com/gdex-labs/gdex/pkg/types"
)

var ControllerAccount = types.AccountPubKey([32]byte{'C', 'O', 'N', 'S', 'E', 'N', 'S', 'U', 'S', 'C', 'O', 'N', 'T', 'R', 'O', 'L', 'L', 'E', 'R', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'})

const (
	DefaultBatchSize     = 500_000
	DefaultMaxBatchDelay = 200 * time.Millisecond
)

type Controller struct {
	mu     sync.Mutex
	events *event.Manager
	bank   *bank.Controller

	BatchSize     int
	MaxBatchDelay time.Duration
}

func NewController(bankController *bank.Controller) *Controller {
	return &Controller{
		events:        event.NewManager(),
		bank:          bankController,
		BatchSize:     DefaultBatchSize,
		MaxBatchDelay: DefaultMaxBatchDelay,
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

// HandleConsensusTransaction rejects everything: no request type maps here.
func (c *Controller) HandleConsensusTransaction(_ *types.Transaction) error {
	return types.ErrInvalidRequestType
}

type snapshot struct {
	BatchSize     int
	MaxBatchDelay time.Duration
}

func (c *Controller) CatchupState() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot{BatchSize: c.BatchSize, MaxBatchDelay: c.MaxBatchDelay}); err != nil {
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
	c.BatchSize = snap.BatchSize
	c.MaxBatchDelay = snap.MaxBatchDelay
	return nil
}
