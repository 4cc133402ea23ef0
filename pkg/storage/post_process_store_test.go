package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdex-labs/gdex/pkg/crypto"
	"github.com/gdex-labs/gdex/pkg/types"
)

func openStore(t *testing.T) *PostProcessStore {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteAndReadBlock(t *testing.T) {
	store := openStore(t)

	digest := crypto.Hash([]byte("certificate"))
	block := types.Block{
		CertificateDigest: digest,
		Transactions: []types.ExecutedTransaction{
			{SerializedTransaction: []byte{1, 2, 3}, Result: types.SuccessResult(types.ExecutionResultBody{})},
			{SerializedTransaction: []byte{4, 5}, Result: types.FailedResult(types.ErrPaymentRequest)},
		},
	}
	info := types.BlockInfo{BlockNumber: 0, BlockDigest: digest, ValidatorSystemEpochTimeInMicros: 12345}
	require.NoError(t, store.WriteBlock(block, info))

	got, err := store.ReadBlock(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, digest, got.CertificateDigest)
	require.Len(t, got.Transactions, 2)
	require.Equal(t, types.ErrPaymentRequest.Error(), got.Transactions[1].Result.Error)

	gotInfo, err := store.ReadBlockInfo(0)
	require.NoError(t, err)
	require.Equal(t, info, *gotInfo)

	last, err := store.ReadLastBlockInfo()
	require.NoError(t, err)
	require.Equal(t, info, *last)
}

func TestLastBlockInfoAdvances(t *testing.T) {
	store := openStore(t)

	for n := uint64(0); n < 5; n++ {
		info := types.BlockInfo{BlockNumber: n, BlockDigest: crypto.Hash([]byte{byte(n)})}
		require.NoError(t, store.WriteBlock(types.Block{CertificateDigest: info.BlockDigest}, info))
	}
	last, err := store.ReadLastBlockInfo()
	require.NoError(t, err)
	require.EqualValues(t, 4, last.BlockNumber)
}

func TestMissingKeysReturnNil(t *testing.T) {
	store := openStore(t)

	block, err := store.ReadBlock(7)
	require.NoError(t, err)
	require.Nil(t, block)

	info, err := store.ReadLastBlockInfo()
	require.NoError(t, err)
	require.Nil(t, info)

	depth, err := store.ReadOrderbookDepth("1_0")
	require.NoError(t, err)
	require.Nil(t, depth)

	catchup, err := store.ReadLatestCatchupState()
	require.NoError(t, err)
	require.Nil(t, catchup)
}

func TestOrderbookDepthOverwrite(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.WriteOrderbookDepth("1_0", types.OrderbookDepth{
		Bids: []types.DepthLevel{{Price: 100, Quantity: 4}},
	}))
	require.NoError(t, store.WriteOrderbookDepth("1_0", types.OrderbookDepth{
		Bids: []types.DepthLevel{{Price: 105, Quantity: 2}},
		Asks: []types.DepthLevel{{Price: 110, Quantity: 1}},
	}))

	depth, err := store.ReadOrderbookDepth("1_0")
	require.NoError(t, err)
	require.Len(t, depth.Bids, 1)
	require.EqualValues(t, 105, depth.Bids[0].Price)
	require.Len(t, depth.Asks, 1)
}

func TestCatchupStateLatestPointer(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.WriteCatchupState(types.CatchupState{BlockNumber: 100, State: [][]byte{{1}}}))
	require.NoError(t, store.WriteCatchupState(types.CatchupState{BlockNumber: 200, State: [][]byte{{2}}}))

	at100, err := store.ReadCatchupState(100)
	require.NoError(t, err)
	require.EqualValues(t, 100, at100.BlockNumber)

	latest, err := store.ReadLatestCatchupState()
	require.NoError(t, err)
	require.EqualValues(t, 200, latest.BlockNumber)
	require.Equal(t, [][]byte{{2}}, latest.State)
}
