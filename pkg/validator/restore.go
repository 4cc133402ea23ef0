package validator

import (
	"github.com/gdex-labs/gdex/pkg/types"
)

// RestoreFromCatchup loads a whole-controller snapshot into the validator
// and positions the block counter just past the snapshot boundary, so the
// next block consumed from consensus continues the sequence.
func (s *State) RestoreFromCatchup(catchup *types.CatchupState) error {
	if catchup == nil {
		return types.ErrDeserialization
	}
	if err := s.Router.LoadCatchupState(catchup.State); err != nil {
		return err
	}
	s.SetBlockNumber(catchup.BlockNumber + 1)
	s.logger.Infow("restored_from_catchup", "block_number", catchup.BlockNumber)
	return nil
}
