package stake

import (
	"testing"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/crypto"
	"github.com/gdex-labs/gdex/pkg/types"
)

const stakeAmount = 1_000

func pk(b byte) types.AccountPubKey {
	var out types.AccountPubKey
	for i := range out {
		out[i] = b
	}
	return out
}

func fundedController(t *testing.T, owner types.AccountPubKey) (*bank.Controller, *Controller) {
	t.Helper()
	bc := bank.NewController()
	if _, err := bc.CreateAsset(owner); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return bc, NewController(bc)
}

func TestStake(t *testing.T) {
	sender := pk(1)
	bc, sc := fundedController(t, sender)

	if err := sc.Stake(sender, stakeAmount); err != nil {
		t.Fatalf("stake: %v", err)
	}

	balance, _ := bc.GetBalance(sender, types.PrimaryAssetID)
	if balance != types.CreatedAssetBalance-stakeAmount {
		t.Fatalf("bank balance = %d", balance)
	}
	staked, err := sc.GetStaked(sender)
	if err != nil || staked != stakeAmount {
		t.Fatalf("staked = %d (%v)", staked, err)
	}
	if sc.GetTotalStaked() != stakeAmount {
		t.Fatalf("total staked = %d", sc.GetTotalStaked())
	}
}

func TestStakeWithoutFunds(t *testing.T) {
	sender := pk(1)
	_, sc := fundedController(t, sender)

	// an unfunded account cannot stake
	if err := sc.Stake(pk(2), stakeAmount); err == nil {
		t.Fatal("expected stake failure for unfunded account")
	}
	if sc.GetTotalStaked() != 0 {
		t.Fatal("failed stake must not change total")
	}
}

func TestUnstake(t *testing.T) {
	sender := pk(1)
	bc, sc := fundedController(t, sender)

	if err := sc.Stake(sender, stakeAmount); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := sc.Unstake(sender, 400); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	staked, _ := sc.GetStaked(sender)
	if staked != 600 {
		t.Fatalf("staked = %d, want 600", staked)
	}
	if sc.GetTotalStaked() != 600 {
		t.Fatalf("total staked = %d, want 600", sc.GetTotalStaked())
	}
	balance, _ := bc.GetBalance(sender, types.PrimaryAssetID)
	if balance != types.CreatedAssetBalance-600 {
		t.Fatalf("bank balance = %d", balance)
	}

	if err := sc.Unstake(sender, 601); err != types.ErrStakeRequest {
		t.Fatalf("err = %v, want ErrStakeRequest", err)
	}
}

func TestEligibility(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := fundedController(t, a)
	_ = bc.Transfer(a, b, types.PrimaryAssetID, 1_000_000)

	_ = sc.Stake(a, 990)
	_ = sc.Stake(b, 10)

	if !sc.Eligible(a) {
		t.Fatal("a holds 99% of stake, must be eligible")
	}
	if sc.Eligible(b) {
		t.Fatal("b holds 1% of stake, threshold is strict")
	}
}

func TestSelectLeaderIsDeterministic(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := fundedController(t, a)
	_ = bc.Transfer(a, b, types.PrimaryAssetID, 1_000_000)
	_ = sc.Stake(a, 500)
	_ = sc.Stake(b, 500)

	digest := crypto.Hash([]byte("previous block"))
	validators := []types.AccountPubKey{a, b}

	leader1, ok := sc.SelectLeader(digest, validators)
	if !ok {
		t.Fatal("expected a leader")
	}
	leader2, _ := sc.SelectLeader(digest, validators)
	if leader1 != leader2 {
		t.Fatal("same seed must select the same leader")
	}

	// order of the candidate slice must not matter
	leader3, _ := sc.SelectLeader(digest, []types.AccountPubKey{b, a})
	if leader1 != leader3 {
		t.Fatal("leader selection must not depend on input order")
	}
}

func TestCatchupStateRoundTrip(t *testing.T) {
	sender := pk(1)
	_, sc := fundedController(t, sender)
	_ = sc.Stake(sender, stakeAmount)

	blob, err := sc.CatchupState()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored := NewController(bank.NewController())
	if err := restored.LoadCatchupState(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.GetTotalStaked() != stakeAmount {
		t.Fatalf("restored total staked = %d", restored.GetTotalStaked())
	}
	blob2, _ := restored.CatchupState()
	if string(blob) != string(blob2) {
		t.Fatal("catchup state must round trip byte-identically")
	}
}
