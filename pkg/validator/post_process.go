package validator

import (
	"context"
	"sync"

	"github.com/gdex-labs/gdex/pkg/consensus"
	"github.com/gdex-labs/gdex/pkg/controller"
	"github.com/gdex-labs/gdex/pkg/types"
)

// BlockBroadcastBuffer bounds how far the block and catchup processors may
// lag behind the transaction processor.
const BlockBroadcastBuffer = 1000

// PostProcessService owns the three long-lived tasks downstream of
// consensus: the transaction processor (sole mutator of controller state),
// the block processor (metrics and end-of-block hooks) and the catchup
// processor (periodic snapshots). Block numbers fan out on buffered
// channels, so subscribers may lag but never skip.
type PostProcessService struct {
	state *State
	wg    sync.WaitGroup
}

// SpawnPostProcessService starts the pipeline against a consensus output
// stream and returns once all tasks are scheduled. Wait blocks until they
// drain after cancellation or channel close.
func SpawnPostProcessService(ctx context.Context, driver consensus.Driver, state *State) *PostProcessService {
	svc := &PostProcessService{state: state}

	blockCh := make(chan types.BlockNumber, BlockBroadcastBuffer)
	catchupCh := make(chan types.BlockNumber, BlockBroadcastBuffer)

	svc.wg.Add(3)
	go svc.runTransactionProcessor(ctx, driver, blockCh, catchupCh)
	go svc.runBlockProcessor(ctx, blockCh)
	go svc.runCatchupProcessor(ctx, catchupCh)
	return svc
}

// Wait blocks until every task has exited.
func (svc *PostProcessService) Wait() { svc.wg.Wait() }

// runTransactionProcessor is the main execution loop: verify, dispatch,
// and assemble blocks at certificate boundaries.
func (svc *PostProcessService) runTransactionProcessor(ctx context.Context, driver consensus.Driver, subscribers ...chan types.BlockNumber) {
	defer svc.wg.Done()
	defer func() {
		for _, ch := range subscribers {
			close(ch)
		}
	}()

	state := svc.state
	logger := state.Logger()
	var buf []types.ExecutedTransaction

	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-driver.Outputs():
			if !ok {
				return
			}

			if out.SerializedTransaction != nil {
				if executed, keep := svc.processTransaction(out.SerializedTransaction); keep {
					buf = append(buf, executed)
				}
			}

			// next_transaction_index == 0 marks the end of the
			// certificate's batch, including empty batches
			if out.ExecutionIndices.NextTransactionIndex != 0 {
				continue
			}

			blockNumber := state.BlockNumber()
			state.Replay.Advance()

			block := types.Block{
				CertificateDigest: out.Certificate.Digest,
				Transactions:      buf,
			}
			info := types.BlockInfo{
				BlockNumber:                      blockNumber,
				BlockDigest:                      out.Certificate.Digest,
				ValidatorSystemEpochTimeInMicros: uint64(state.Now().UnixMicro()),
			}
			if err := state.Store.WriteBlock(block, info); err != nil {
				logger.Errorw("block_write_failed", "block_number", blockNumber, "err", err)
				continue
			}
			state.SetBlockNumber(blockNumber + 1)
			logger.Infow("block_finalized", "block_number", blockNumber, "transactions", len(buf))

			for _, ch := range subscribers {
				ch <- blockNumber
			}
			buf = nil
		}
	}
}

// processTransaction runs one serialized transaction through the state
// machine. The second return is false when the transaction is dropped from
// the block entirely (replay duplicates only); every other failure is
// recorded so the block still advances.
func (svc *PostProcessService) processTransaction(serialized []byte) (types.ExecutedTransaction, bool) {
	state := svc.state

	if state.Halted() {
		return types.ExecutedTransaction{
			SerializedTransaction: serialized,
			Result:                types.FailedResult(types.ErrValidatorHalted),
		}, true
	}

	var signed types.SignedTransaction
	if err := signed.Unmarshal(serialized); err != nil {
		state.Metrics.TransactionsFailed.Inc()
		return types.ExecutedTransaction{
			SerializedTransaction: serialized,
			Result:                types.FailedResult(types.ErrDeserialization),
		}, true
	}

	if err := signed.VerifySignature(); err != nil {
		state.Metrics.TransactionsFailed.Inc()
		return types.ExecutedTransaction{
			SerializedTransaction: serialized,
			Result:                types.FailedResult(types.ErrTransactionSignature),
		}, true
	}

	if !state.Replay.Insert(signed.Transaction.Digest()) {
		state.Metrics.TransactionsDuplicate.Inc()
		return types.ExecutedTransaction{}, false
	}

	state.Metrics.TransactionsProcessed.Inc()
	body, err := state.Router.HandleConsensusTransaction(signed.Transaction)
	result := types.SuccessResult(body)
	if err != nil {
		state.Metrics.TransactionsFailed.Inc()
		result = types.FailedResult(err)
	}
	return types.ExecutedTransaction{SerializedTransaction: serialized, Result: result}, true
}

// runBlockProcessor consumes finalized block numbers: metrics first, then
// the controllers' end-of-block hooks.
func (svc *PostProcessService) runBlockProcessor(ctx context.Context, blockCh <-chan types.BlockNumber) {
	defer svc.wg.Done()
	state := svc.state
	logger := state.Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-blockCh:
			if !ok {
				return
			}
			block, err := state.Store.ReadBlock(n)
			if err != nil {
				logger.Errorw("block_read_failed", "block_number", n, "err", err)
				continue
			}
			info, err := state.Store.ReadBlockInfo(n)
			if err != nil {
				logger.Errorw("block_info_read_failed", "block_number", n, "err", err)
				continue
			}
			if block != nil && info != nil {
				state.Metrics.ProcessEndOfBlock(*block, *info)
			}
			state.Router.ProcessEndOfBlock(state.Store, n)
		}
	}
}

// runCatchupProcessor snapshots full controller state at the configured
// frequency.
func (svc *PostProcessService) runCatchupProcessor(ctx context.Context, catchupCh <-chan types.BlockNumber) {
	defer svc.wg.Done()
	state := svc.state

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-catchupCh:
			if !ok {
				return
			}
			state.Router.CreateCatchupState(state.Store, n)
			if n%controller.CatchupStateFrequency == 0 {
				state.Metrics.CatchupSnapshots.Inc()
			}
		}
	}
}
