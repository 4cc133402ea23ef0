package controller

import (
	"testing"

	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/controller/consensusparams"
	"github.com/gdex-labs/gdex/pkg/crypto"
	"github.com/gdex-labs/gdex/pkg/types"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	r := NewRouter(zap.NewNop().Sugar())
	r.InitializeControllers()
	if err := r.InitializeControllerAccounts(); err != nil {
		t.Fatalf("controller accounts: %v", err)
	}
	return r
}

func pk(b byte) types.AccountPubKey {
	var out types.AccountPubKey
	for i := range out {
		out[i] = b
	}
	return out
}

func buildTx(sender types.AccountPubKey, controller types.ControllerType, request types.RequestType, fee uint64, payload interface{ Marshal() []byte }) *types.Transaction {
	return types.NewTransaction(sender, controller, request, crypto.Digest{}, fee, payload.Marshal())
}

func TestDispatchPayment(t *testing.T) {
	r := testRouter(t)
	sender, receiver := pk(1), pk(2)

	if _, err := r.BankController.CreateAsset(sender); err != nil {
		t.Fatalf("create asset: %v", err)
	}

	tx := buildTx(sender, types.ControllerBank, types.RequestPayment, 1000,
		&types.PaymentRequest{Receiver: receiver, AssetID: 0, Quantity: 1_000_000})
	body, err := r.HandleConsensusTransaction(tx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Type != types.EventPaymentSuccess {
		t.Fatalf("events = %+v", body.Events)
	}

	// sender paid amount + fee; the fee sits on the consensus account
	got, _ := r.BankController.GetBalance(sender, 0)
	if got != types.CreatedAssetBalance-1_000_000-1_000 {
		t.Fatalf("sender balance = %d", got)
	}
	recv, _ := r.BankController.GetBalance(receiver, 0)
	if recv != 1_000_000 {
		t.Fatalf("receiver balance = %d", recv)
	}
	feePot, _ := r.BankController.GetBalance(consensusparams.ControllerAccount, 0)
	if feePot != 1_000 {
		t.Fatalf("fee pot = %d", feePot)
	}
}

func TestDispatchFailureStillEmitsNoEvents(t *testing.T) {
	r := testRouter(t)
	sender := pk(1)

	tx := buildTx(sender, types.ControllerBank, types.RequestPayment, 0,
		&types.PaymentRequest{Receiver: pk(2), AssetID: 0, Quantity: 5})
	body, err := r.HandleConsensusTransaction(tx)
	if err == nil {
		t.Fatal("expected failure for unknown sender account")
	}
	if len(body.Events) != 0 {
		t.Fatalf("failed dispatch must not leak events, got %+v", body.Events)
	}
}

func TestConsensusControllerRejectsEverything(t *testing.T) {
	r := testRouter(t)
	tx := buildTx(pk(1), types.ControllerConsensus, types.RequestPayment, 0, &types.CreateAssetRequest{})
	if _, err := r.HandleConsensusTransaction(tx); err != types.ErrInvalidRequestType {
		t.Fatalf("err = %v, want ErrInvalidRequestType", err)
	}
}

func TestUnknownControllerRejected(t *testing.T) {
	r := testRouter(t)
	tx := buildTx(pk(1), types.ControllerType(9), types.RequestPayment, 0, &types.CreateAssetRequest{})
	if _, err := r.HandleConsensusTransaction(tx); err != types.ErrInvalidController {
		t.Fatalf("err = %v, want ErrInvalidController", err)
	}
}

func TestEventBufferSwapsPerTransaction(t *testing.T) {
	r := testRouter(t)
	sender := pk(1)
	if _, err := r.BankController.CreateAsset(sender); err != nil {
		t.Fatalf("create asset: %v", err)
	}

	tx := buildTx(sender, types.ControllerBank, types.RequestCreateAsset, 0, &types.CreateAssetRequest{})
	body1, err := r.HandleConsensusTransaction(tx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	body2, err := r.HandleConsensusTransaction(tx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(body1.Events) != 1 || len(body2.Events) != 1 {
		t.Fatalf("each dispatch must carry only its own events: %d, %d", len(body1.Events), len(body2.Events))
	}
}

// The catchup snapshot covers every controller and restores to an
// identical re-snapshot - the serialization law the catchup processor
// relies on.
func TestCatchupSnapshotRoundTrip(t *testing.T) {
	r := testRouter(t)
	sender := pk(1)
	if _, err := r.BankController.CreateAsset(sender); err != nil {
		t.Fatalf("create asset 0: %v", err)
	}
	if _, err := r.BankController.CreateAsset(sender); err != nil {
		t.Fatalf("create asset 1: %v", err)
	}
	if err := r.StakeController.Stake(sender, 1_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := r.SpotController.CreateOrderbook(1, 0); err != nil {
		t.Fatalf("create orderbook: %v", err)
	}
	if err := r.FuturesController.CreateMarketplace(sender, 0); err != nil {
		t.Fatalf("create marketplace: %v", err)
	}
	if err := r.FuturesController.CreateMarket(sender, 1); err != nil {
		t.Fatalf("create market: %v", err)
	}

	blobs, err := r.SnapshotControllers()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(blobs) != 5 {
		t.Fatalf("expected 5 controller blobs, got %d", len(blobs))
	}

	restored := testRouter(t)
	if err := restored.LoadCatchupState(blobs); err != nil {
		t.Fatalf("restore: %v", err)
	}
	blobs2, err := restored.SnapshotControllers()
	if err != nil {
		t.Fatalf("re-snapshot: %v", err)
	}
	for i := range blobs {
		if string(blobs[i]) != string(blobs2[i]) {
			t.Fatalf("controller blob %d differs after restore", i)
		}
	}

	staked, err := restored.StakeController.GetStaked(sender)
	if err != nil || staked != 1_000 {
		t.Fatalf("restored stake = %d (%v)", staked, err)
	}
}

func TestPartialCatchupStateRejected(t *testing.T) {
	r := testRouter(t)
	if err := r.LoadCatchupState([][]byte{{1}, {2}}); err != types.ErrDeserialization {
		t.Fatalf("err = %v, want ErrDeserialization", err)
	}
}
