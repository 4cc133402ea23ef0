// Package genesis defines the validator genesis state: the committee, the
// starting accounts, and the bootstrap of controller state from it.
package genesis

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gdex-labs/gdex/pkg/controller"
	"github.com/gdex-labs/gdex/pkg/types"
)

const (
	// DefaultValidatorCount is the committee size of a default genesis.
	DefaultValidatorCount = 4
	// ValidatorFundingAmount is the default stake per validator.
	ValidatorFundingAmount uint64 = 1_000_000
	// ValidatorBalance is the default primary-asset balance per validator.
	ValidatorBalance uint64 = 100_000_000
	// BlobFileName is the gob-encoded genesis blob inside the genesis dir.
	BlobFileName = "genesis.blob"
)

// ValidatorInfo describes one committee member.
type ValidatorInfo struct {
	Name             string
	PublicKey        types.AccountPubKey
	Stake            uint64
	Balance          uint64
	Delegation       uint64
	NarwhalAddresses []string
}

// StartingAccount funds a non-validator account at genesis.
type StartingAccount struct {
	PublicKey types.AccountPubKey
	Balance   uint64
}

// ValidatorGenesisState is the decoded genesis blob.
type ValidatorGenesisState struct {
	Validators       []ValidatorInfo
	StartingAccounts []StartingAccount
}

// Committee is the active validator set, hot-swappable on the validator
// state.
type Committee struct {
	Validators []ValidatorInfo
}

// PublicKeys lists the committee members' keys in genesis order.
func (c *Committee) PublicKeys() []types.AccountPubKey {
	out := make([]types.AccountPubKey, 0, len(c.Validators))
	for _, v := range c.Validators {
		out = append(out, v.PublicKey)
	}
	return out
}

// Committee derives the epoch-zero committee.
func (g *ValidatorGenesisState) Committee() *Committee {
	return &Committee{Validators: g.Validators}
}

// Save writes the gob blob into dir.
func (g *ValidatorGenesisState) Save(dir string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return fmt.Errorf("encode genesis: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, BlobFileName), buf.Bytes(), 0o644)
}

// Load reads the gob blob from dir.
func Load(dir string) (*ValidatorGenesisState, error) {
	raw, err := os.ReadFile(filepath.Join(dir, BlobFileName))
	if err != nil {
		return nil, fmt.Errorf("read genesis blob: %w", err)
	}
	var g ValidatorGenesisState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode genesis blob: %w", err)
	}
	return &g, nil
}

// ConfigDir resolves the gdex config directory: GDEX_CONFIG_DIR overrides
// ~/.gdex/gdex_config.
func ConfigDir() string {
	if dir := os.Getenv("GDEX_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gdex/gdex_config"
	}
	return filepath.Join(home, ".gdex", "gdex_config")
}

// InitializeState replays the genesis ceremony into a fresh router: the
// first validator mints the primary asset, every participant is funded from
// it, and validator stakes are placed.
func (g *ValidatorGenesisState) InitializeState(router *controller.Router) error {
	if len(g.Validators) == 0 {
		return types.ErrInvalidCommittee
	}
	router.InitializeControllers()
	if err := router.InitializeControllerAccounts(); err != nil {
		return err
	}

	treasury := g.Validators[0].PublicKey
	if _, err := router.BankController.CreateAsset(treasury); err != nil {
		return err
	}

	for i, v := range g.Validators {
		if i > 0 {
			if err := router.BankController.Transfer(treasury, v.PublicKey, types.PrimaryAssetID, v.Balance); err != nil {
				return err
			}
		}
		if err := router.StakeController.Stake(v.PublicKey, v.Stake); err != nil {
			return err
		}
	}
	for _, a := range g.StartingAccounts {
		if err := router.BankController.Transfer(treasury, a.PublicKey, types.PrimaryAssetID, a.Balance); err != nil {
			return err
		}
	}
	return nil
}
