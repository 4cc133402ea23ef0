// Package validator implements the execution path from consensus output to
// persisted blocks: verification, dispatch, block assembly, and the
// downstream block and catchup processors.
package validator

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/controller"
	"github.com/gdex-labs/gdex/pkg/genesis"
	"github.com/gdex-labs/gdex/pkg/storage"
)

// State is everything one validator owns: identity, committee, controller
// state, and the post-process store. The transaction processor is the sole
// mutator of controller state.
type State struct {
	Name   string
	Router *controller.Router
	Store  *storage.PostProcessStore

	Metrics *Metrics
	Replay  *ReplayCache

	// Now supplies the block-assembly wall clock; injectable for
	// deterministic tests.
	Now func() time.Time

	committee   atomic.Pointer[genesis.Committee]
	halted      atomic.Bool
	blockNumber atomic.Uint64

	logger *zap.SugaredLogger
}

// NewState wires a validator around an initialized router and store.
func NewState(name string, router *controller.Router, store *storage.PostProcessStore, committee *genesis.Committee, logger *zap.SugaredLogger) *State {
	s := &State{
		Name:    name,
		Router:  router,
		Store:   store,
		Metrics: NewMetrics(),
		Replay:  NewReplayCache(ReplayWindowBlocks),
		Now:     time.Now,
		logger:  logger,
	}
	s.committee.Store(committee)
	return s
}

// Committee returns the current committee pointer.
func (s *State) Committee() *genesis.Committee { return s.committee.Load() }

// SwapCommittee installs a new committee, e.g. at an epoch change.
func (s *State) SwapCommittee(c *genesis.Committee) { s.committee.Store(c) }

// Halt stops transaction acceptance; in-flight blocks still complete.
func (s *State) Halt() { s.halted.Store(true) }

// Resume re-enables transaction acceptance.
func (s *State) Resume() { s.halted.Store(false) }

// Halted reports the halt flag.
func (s *State) Halted() bool { return s.halted.Load() }

// BlockNumber is the next block number to be written.
func (s *State) BlockNumber() uint64 { return s.blockNumber.Load() }

// SetBlockNumber seeds the counter when restoring from catchup.
func (s *State) SetBlockNumber(n uint64) { s.blockNumber.Store(n) }

func (s *State) Logger() *zap.SugaredLogger { return s.logger }
