package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/consensus"
	"github.com/gdex-labs/gdex/pkg/controller"
	"github.com/gdex-labs/gdex/pkg/crypto"
	"github.com/gdex-labs/gdex/pkg/genesis"
	"github.com/gdex-labs/gdex/pkg/storage"
	"github.com/gdex-labs/gdex/pkg/types"
)

type fixture struct {
	state  *State
	driver *consensus.ChannelDriver
	keys   []*crypto.KeyPair
	pks    []types.AccountPubKey
	cancel context.CancelFunc
	svc    *PostProcessService
}

// newFixture stands up one validator over a 2-member committee with a
// deterministic clock and a direct channel in place of the consensus
// transport.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	var keys []*crypto.KeyPair
	var pks []types.AccountPubKey
	var infos []genesis.ValidatorInfo
	for i := byte(0); i < 2; i++ {
		seed := make([]byte, crypto.SeedSize)
		seed[0] = i + 1
		kp, err := crypto.KeyPairFromSeed(seed)
		require.NoError(t, err)
		pk, err := types.PubKeyFromBytes(kp.Public)
		require.NoError(t, err)
		keys = append(keys, kp)
		pks = append(pks, pk)
		infos = append(infos, genesis.ValidatorInfo{
			Name:      "validator-" + string('0'+rune(i)),
			PublicKey: pk,
			Stake:     1_000,
			Balance:   1_000_000,
		})
	}
	genesisState := &genesis.ValidatorGenesisState{Validators: infos}

	logger := zap.NewNop().Sugar()
	router := controller.NewRouter(logger)
	require.NoError(t, genesisState.InitializeState(router))

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	state := NewState("validator-0", router, store, genesisState.Committee(), logger)
	state.Now = func() time.Time { return time.UnixMicro(1_700_000_000_000_000) }

	ctx, cancel := context.WithCancel(context.Background())
	driver := consensus.NewChannelDriver(64)
	svc := SpawnPostProcessService(ctx, driver, state)
	t.Cleanup(func() {
		cancel()
		close(driver.Ch)
		svc.Wait()
	})

	return &fixture{state: state, driver: driver, keys: keys, pks: pks, cancel: cancel, svc: svc}
}

func (f *fixture) signedPayment(t *testing.T, from int, to int, amount, fee uint64) []byte {
	t.Helper()
	req := types.PaymentRequest{Receiver: f.pks[to], AssetID: types.PrimaryAssetID, Quantity: amount}
	tx := types.NewTransaction(f.pks[from], types.ControllerBank, types.RequestPayment, crypto.Digest{}, fee, req.Marshal())
	signed, err := tx.Sign(f.keys[from])
	require.NoError(t, err)
	return signed.Marshal()
}

// feedBatch delivers one certificate's ordered batch. The last output
// wraps NextTransactionIndex to zero, which is the block boundary.
func (f *fixture) feedBatch(certSeed byte, txs ...[]byte) {
	cert := consensus.Certificate{Digest: crypto.Hash([]byte{certSeed}), Round: uint64(certSeed)}
	if len(txs) == 0 {
		f.driver.Ch <- consensus.Output{Certificate: cert}
		return
	}
	for i, tx := range txs {
		next := uint64(i + 1)
		if i == len(txs)-1 {
			next = 0
		}
		f.driver.Ch <- consensus.Output{
			Certificate:           cert,
			ExecutionIndices:      consensus.ExecutionIndices{NextTransactionIndex: next},
			SerializedTransaction: tx,
		}
	}
}

func waitForBlock(t *testing.T, store *storage.PostProcessStore, n types.BlockNumber) *types.Block {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := store.ReadLastBlockInfo()
		require.NoError(t, err)
		if info != nil && info.BlockNumber >= n {
			block, err := store.ReadBlock(n)
			require.NoError(t, err)
			require.NotNil(t, block)
			return block
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("block %d never appeared", n)
	return nil
}

// Genesis and first transfer: one payment with a fee lands in block 0 and
// moves exactly amount+fee out of the sender.
func TestPipelinePaymentBlock(t *testing.T) {
	f := newFixture(t)
	bankCtrl := f.state.Router.BankController

	before0, err := bankCtrl.GetBalance(f.pks[0], 0)
	require.NoError(t, err)
	before1, err := bankCtrl.GetBalance(f.pks[1], 0)
	require.NoError(t, err)

	f.feedBatch(1, f.signedPayment(t, 0, 1, 1_000_000, 1_000))
	block := waitForBlock(t, f.state.Store, 0)

	require.Len(t, block.Transactions, 1)
	require.False(t, block.Transactions[0].Result.Failed())

	after0, _ := bankCtrl.GetBalance(f.pks[0], 0)
	after1, _ := bankCtrl.GetBalance(f.pks[1], 0)
	require.Equal(t, before0-1_001_000, after0)
	require.Equal(t, before1+1_000_000, after1)
	require.EqualValues(t, 1, f.state.BlockNumber())
}

// Replay: the same signed transaction twice in one batch executes once;
// the duplicate is dropped from the block entirely.
func TestPipelineReplayDrop(t *testing.T) {
	f := newFixture(t)

	payment := f.signedPayment(t, 0, 1, 500, 0)
	f.feedBatch(1, payment, payment)
	block := waitForBlock(t, f.state.Store, 0)

	require.Len(t, block.Transactions, 1)

	balance, _ := f.state.Router.BankController.GetBalance(f.pks[1], 0)
	require.EqualValues(t, 1_000_000-1_000+500, balance)
}

// A replay across blocks inside the window is also dropped.
func TestPipelineReplayAcrossBlocks(t *testing.T) {
	f := newFixture(t)

	payment := f.signedPayment(t, 0, 1, 500, 0)
	f.feedBatch(1, payment)
	waitForBlock(t, f.state.Store, 0)
	f.feedBatch(2, payment)
	block := waitForBlock(t, f.state.Store, 1)

	require.Len(t, block.Transactions, 0)
}

// Empty certificates still produce blocks so numbers stay contiguous.
func TestPipelineEmptyBatches(t *testing.T) {
	f := newFixture(t)

	f.feedBatch(1)
	f.feedBatch(2)
	f.feedBatch(3, f.signedPayment(t, 0, 1, 1, 0))

	block := waitForBlock(t, f.state.Store, 2)
	require.Len(t, block.Transactions, 1)

	for n := types.BlockNumber(0); n < 2; n++ {
		b, err := f.state.Store.ReadBlock(n)
		require.NoError(t, err)
		require.NotNil(t, b)
		require.Len(t, b.Transactions, 0)
	}
}

// Malformed and badly signed transactions are recorded as failed
// executions; the block still advances.
func TestPipelineRecordsFailures(t *testing.T) {
	f := newFixture(t)

	garbage := []byte{0xff, 0xff, 0xff}

	// a payment signed by the wrong key
	req := types.PaymentRequest{Receiver: f.pks[0], AssetID: 0, Quantity: 1}
	tx := types.NewTransaction(f.pks[0], types.ControllerBank, types.RequestPayment, crypto.Digest{}, 0, req.Marshal())
	forged, err := tx.Sign(f.keys[1])
	require.NoError(t, err)

	f.feedBatch(1, garbage, forged.Marshal())
	block := waitForBlock(t, f.state.Store, 0)

	require.Len(t, block.Transactions, 2)
	require.Equal(t, types.ErrDeserialization.Error(), block.Transactions[0].Result.Error)
	require.Equal(t, types.ErrTransactionSignature.Error(), block.Transactions[1].Result.Error)
}

// A halted validator records failures instead of executing.
func TestPipelineHalt(t *testing.T) {
	f := newFixture(t)
	f.state.Halt()

	f.feedBatch(1, f.signedPayment(t, 0, 1, 500, 0))
	block := waitForBlock(t, f.state.Store, 0)

	require.Len(t, block.Transactions, 1)
	require.Equal(t, types.ErrValidatorHalted.Error(), block.Transactions[0].Result.Error)

	balance, _ := f.state.Router.BankController.GetBalance(f.pks[1], 0)
	require.EqualValues(t, 1_000_000-1_000, balance)
}

// Catchup: snapshots appear on the frequency boundary and a fresh
// validator restored from one re-serializes identically.
func TestPipelineCatchupRoundTrip(t *testing.T) {
	f := newFixture(t)

	f.feedBatch(1, f.signedPayment(t, 0, 1, 123_456, 0))
	waitForBlock(t, f.state.Store, 0)

	// drive past the snapshot boundary with empty certificates
	for i := 1; i <= int(controller.CatchupStateFrequency); i++ {
		f.feedBatch(byte(i % 250))
	}
	waitForBlock(t, f.state.Store, controller.CatchupStateFrequency)

	var catchup *types.CatchupState
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		catchup, err = f.state.Store.ReadCatchupState(controller.CatchupStateFrequency)
		require.NoError(t, err)
		if catchup != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, catchup, "catchup snapshot never appeared")
	require.Len(t, catchup.State, 5)

	logger := zap.NewNop().Sugar()
	freshRouter := controller.NewRouter(logger)
	freshRouter.InitializeControllers()
	freshStore, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = freshStore.Close() })
	fresh := NewState("validator-1", freshRouter, freshStore, f.state.Committee(), logger)

	require.NoError(t, fresh.RestoreFromCatchup(catchup))
	require.Equal(t, catchup.BlockNumber+1, fresh.BlockNumber())

	blobs, err := freshRouter.SnapshotControllers()
	require.NoError(t, err)
	for i := range blobs {
		require.Equal(t, catchup.State[i], blobs[i], "controller %d state differs after restore", i)
	}

	balance, err := freshRouter.BankController.GetBalance(f.pks[1], 0)
	require.NoError(t, err)
	require.EqualValues(t, 1_000_000-1_000+123_456, balance)
}

// Ordering law: two validators fed the same consensus output write
// byte-identical block info.
func TestPipelineDeterminismAcrossValidators(t *testing.T) {
	f1 := newFixture(t)
	f2 := newFixture(t)

	payment1 := f1.signedPayment(t, 0, 1, 42, 0)
	payment2 := f2.signedPayment(t, 0, 1, 42, 0)
	require.Equal(t, payment1, payment2, "identical inputs must serialize identically")

	f1.feedBatch(1, payment1)
	f2.feedBatch(1, payment2)

	b1 := waitForBlock(t, f1.state.Store, 0)
	b2 := waitForBlock(t, f2.state.Store, 0)
	require.Equal(t, b1, b2)

	i1, _ := f1.state.Store.ReadBlockInfo(0)
	i2, _ := f2.state.Store.ReadBlockInfo(0)
	require.Equal(t, i1, i2)
}
