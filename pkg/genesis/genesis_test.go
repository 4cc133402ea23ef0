package genesis

import (
	"testing"

	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/controller"
	"github.com/gdex-labs/gdex/pkg/types"
)

func pk(b byte) types.AccountPubKey {
	var out types.AccountPubKey
	for i := range out {
		out[i] = b
	}
	return out
}

func testGenesis() *ValidatorGenesisState {
	g := &ValidatorGenesisState{}
	for i := byte(0); i < DefaultValidatorCount; i++ {
		g.Validators = append(g.Validators, ValidatorInfo{
			Name:      "validator-" + string('0'+rune(i)),
			PublicKey: pk(i + 1),
			Stake:     ValidatorFundingAmount,
			Balance:   ValidatorBalance,
		})
	}
	g.StartingAccounts = []StartingAccount{{PublicKey: pk(99), Balance: 12_345}}
	return g
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	g := testGenesis()
	if err := g.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Validators) != DefaultValidatorCount {
		t.Fatalf("validators = %d", len(loaded.Validators))
	}
	if loaded.Validators[2].PublicKey != pk(3) {
		t.Fatal("validator order must survive the round trip")
	}
	if len(loaded.StartingAccounts) != 1 || loaded.StartingAccounts[0].Balance != 12_345 {
		t.Fatalf("starting accounts = %+v", loaded.StartingAccounts)
	}
}

func TestInitializeState(t *testing.T) {
	g := testGenesis()
	router := controller.NewRouter(zap.NewNop().Sugar())
	if err := g.InitializeState(router); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// every validator is staked
	for _, v := range g.Validators {
		staked, err := router.StakeController.GetStaked(v.PublicKey)
		if err != nil || staked != ValidatorFundingAmount {
			t.Fatalf("%s staked = %d (%v)", v.Name, staked, err)
		}
	}
	if router.StakeController.GetTotalStaked() != DefaultValidatorCount*ValidatorFundingAmount {
		t.Fatalf("total staked = %d", router.StakeController.GetTotalStaked())
	}

	// non-treasury validators hold balance minus stake
	for _, v := range g.Validators[1:] {
		balance, err := router.BankController.GetBalance(v.PublicKey, types.PrimaryAssetID)
		if err != nil || balance != ValidatorBalance-ValidatorFundingAmount {
			t.Fatalf("%s balance = %d (%v)", v.Name, balance, err)
		}
	}

	// starting accounts are funded
	balance, err := router.BankController.GetBalance(pk(99), types.PrimaryAssetID)
	if err != nil || balance != 12_345 {
		t.Fatalf("starting account balance = %d (%v)", balance, err)
	}

	// supply is conserved
	treasury, _ := router.BankController.GetBalance(g.Validators[0].PublicKey, types.PrimaryAssetID)
	var others uint64
	for _, v := range g.Validators[1:] {
		b, _ := router.BankController.GetBalance(v.PublicKey, types.PrimaryAssetID)
		others += b
	}
	total := treasury + others + 12_345 + router.StakeController.GetTotalStaked()
	if total != types.CreatedAssetBalance {
		t.Fatalf("supply = %d, want %d", total, types.CreatedAssetBalance)
	}
}

func TestEmptyGenesisRejected(t *testing.T) {
	g := &ValidatorGenesisState{}
	router := controller.NewRouter(zap.NewNop().Sugar())
	if err := g.InitializeState(router); err != types.ErrInvalidCommittee {
		t.Fatalf("err = %v, want ErrInvalidCommittee", err)
	}
}
