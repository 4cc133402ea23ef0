// Package controller wires the five state controllers behind a single
// dispatch surface. The router is the only entry point consensus-ordered
// transactions take into replicated state.
package controller

import (
	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/controller/consensusparams"
	"github.com/gdex-labs/gdex/pkg/controller/event"
	"github.com/gdex-labs/gdex/pkg/controller/futures"
	"github.com/gdex-labs/gdex/pkg/controller/spot"
	"github.com/gdex-labs/gdex/pkg/controller/stake"
	"github.com/gdex-labs/gdex/pkg/types"
)

// CatchupStateFrequency is the block interval between full-state
// snapshots.
const CatchupStateFrequency types.BlockNumber = 100

// PostProcessStore is the slice of the storage layer the end-of-block and
// catchup hooks write to.
type PostProcessStore interface {
	WriteOrderbookDepth(pair string, depth types.OrderbookDepth) error
	WriteCatchupState(state types.CatchupState) error
}

// Router owns every controller. Controllers guard their own state; the
// router adds the shared event buffer and fee settlement.
type Router struct {
	events *event.Manager
	logger *zap.SugaredLogger

	BankController            *bank.Controller
	StakeController           *stake.Controller
	SpotController            *spot.Controller
	FuturesController         *futures.Controller
	ConsensusParamsController *consensusparams.Controller
}

// NewRouter builds the controller hierarchy: bank first, everything else
// holding a reference to it.
func NewRouter(logger *zap.SugaredLogger) *Router {
	bankController := bank.NewController()
	return &Router{
		events:                    event.NewManager(),
		logger:                    logger,
		BankController:            bankController,
		StakeController:           stake.NewController(bankController),
		SpotController:            spot.NewController(bankController),
		FuturesController:         futures.NewController(bankController),
		ConsensusParamsController: consensusparams.NewController(bankController),
	}
}

// InitializeControllers hands every controller the shared event manager.
func (r *Router) InitializeControllers() {
	r.ConsensusParamsController.Initialize(r.events)
	r.BankController.Initialize(r.events)
	r.StakeController.Initialize(r.events)
	r.SpotController.Initialize(r.events)
	r.FuturesController.Initialize(r.events)
}

// InitializeControllerAccounts creates the controllers' own bank accounts.
func (r *Router) InitializeControllerAccounts() error {
	if err := r.BankController.InitializeControllerAccount(); err != nil {
		return err
	}
	if err := r.StakeController.InitializeControllerAccount(); err != nil {
		return err
	}
	if err := r.SpotController.InitializeControllerAccount(); err != nil {
		return err
	}
	if err := r.FuturesController.InitializeControllerAccount(); err != nil {
		return err
	}
	return r.ConsensusParamsController.InitializeControllerAccount()
}

// HandleConsensusTransaction dispatches one ordered transaction and returns
// the events it produced. The fee settles into the consensus controller's
// account afterwards, best effort, so the minted supply stays conserved.
func (r *Router) HandleConsensusTransaction(tx *types.Transaction) (types.ExecutionResultBody, error) {
	controllerType, err := types.ControllerTypeFromInt32(int32(tx.TargetController))
	if err != nil {
		r.events.Reset()
		return types.ExecutionResultBody{}, err
	}

	switch controllerType {
	case types.ControllerBank:
		err = r.BankController.HandleConsensusTransaction(tx)
	case types.ControllerStake:
		err = r.StakeController.HandleConsensusTransaction(tx)
	case types.ControllerSpot:
		err = r.SpotController.HandleConsensusTransaction(tx)
	case types.ControllerConsensus:
		err = r.ConsensusParamsController.HandleConsensusTransaction(tx)
	case types.ControllerFutures:
		err = r.FuturesController.HandleConsensusTransaction(tx)
	}

	r.settleFee(tx)

	body := r.events.Emit()
	if err != nil {
		return types.ExecutionResultBody{}, err
	}
	return body, nil
}

// settleFee moves the gas fee to the consensus controller account. Genesis
// bootstrap transactions have no funded sender yet, so failures are
// tolerated.
func (r *Router) settleFee(tx *types.Transaction) {
	if tx.Fee == 0 {
		return
	}
	if err := r.BankController.Transfer(tx.Sender, consensusparams.ControllerAccount, types.PrimaryAssetID, tx.Fee); err != nil {
		r.logger.Debugw("fee_settlement_skipped", "sender", tx.Sender.String(), "fee", tx.Fee, "err", err)
	}
}

// ProcessEndOfBlock runs every controller's end-of-block hook.
func (r *Router) ProcessEndOfBlock(store PostProcessStore, blockNumber types.BlockNumber) {
	r.SpotController.ProcessEndOfBlock(store, blockNumber)
	r.FuturesController.ProcessEndOfBlock(store, blockNumber)
}

// CreateCatchupState snapshots every controller once per frequency window.
// If any controller fails to serialize the snapshot is dropped, never
// written partial.
func (r *Router) CreateCatchupState(store PostProcessStore, blockNumber types.BlockNumber) {
	if blockNumber%CatchupStateFrequency != 0 {
		return
	}
	blobs, err := r.SnapshotControllers()
	if err != nil {
		r.logger.Errorw("catchup_snapshot_failed", "block_number", blockNumber, "err", err)
		return
	}

	var size int
	for _, b := range blobs {
		size += len(b)
	}
	r.logger.Infow("catchup_snapshot", "block_number", blockNumber, "bytes", size)

	if err := store.WriteCatchupState(types.CatchupState{BlockNumber: blockNumber, State: blobs}); err != nil {
		r.logger.Errorw("catchup_write_failed", "block_number", blockNumber, "err", err)
	}
}

// SnapshotControllers serializes every controller in router order.
func (r *Router) SnapshotControllers() ([][]byte, error) {
	consensusBlob, err := r.ConsensusParamsController.CatchupState()
	if err != nil {
		return nil, err
	}
	bankBlob, err := r.BankController.CatchupState()
	if err != nil {
		return nil, err
	}
	stakeBlob, err := r.StakeController.CatchupState()
	if err != nil {
		return nil, err
	}
	spotBlob, err := r.SpotController.CatchupState()
	if err != nil {
		return nil, err
	}
	futuresBlob, err := r.FuturesController.CatchupState()
	if err != nil {
		return nil, err
	}
	return [][]byte{consensusBlob, bankBlob, stakeBlob, spotBlob, futuresBlob}, nil
}

// LoadCatchupState restores every controller from a snapshot produced by
// SnapshotControllers.
func (r *Router) LoadCatchupState(state [][]byte) error {
	if len(state) != 5 {
		return types.ErrDeserialization
	}
	if err := r.ConsensusParamsController.LoadCatchupState(state[0]); err != nil {
		return err
	}
	if err := r.BankController.LoadCatchupState(state[1]); err != nil {
		return err
	}
	if err := r.StakeController.LoadCatchupState(state[2]); err != nil {
		return err
	}
	if err := r.SpotController.LoadCatchupState(state[3]); err != nil {
		return err
	}
	return r.FuturesController.LoadCatchupState(state[4])
}
