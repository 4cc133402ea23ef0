// Package storage persists the post-process output of a validator: blocks,
// block info, orderbook depth and catchup snapshots, all in one pebble
// database under prefixed keyspaces.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/gdex-labs/gdex/pkg/types"
)

// keys: b:<8-byte-number>, bi:<8-byte-number>, lb:0, od:<pair>, cs:<8-byte-number>, lcs:0
func kBlock(n types.BlockNumber) []byte     { return append([]byte("b:"), blockKey(n)...) }
func kBlockInfo(n types.BlockNumber) []byte { return append([]byte("bi:"), blockKey(n)...) }
func kLastBlock() []byte                    { return []byte("lb:0") }
func kDepth(pair string) []byte             { return append([]byte("od:"), pair...) }
func kCatchup(n types.BlockNumber) []byte   { return append([]byte("cs:"), blockKey(n)...) }
func kLastCatchup() []byte                  { return []byte("lcs:0") }

// PostProcessStore owns the five persistent keyspaces and is shared
// read-only with the RPC handlers.
type PostProcessStore struct {
	db *pebble.DB
}

func Open(path string) (*PostProcessStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open post-process store: %w", err)
	}
	return &PostProcessStore{db: db}, nil
}

func (s *PostProcessStore) Close() error { return s.db.Close() }

// WriteBlock persists the block, its info, and advances the last-block
// pointer in one batch.
func (s *PostProcessStore) WriteBlock(block types.Block, info types.BlockInfo) error {
	blockVal, err := encodeGob(block)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	infoVal, err := encodeGob(info)
	if err != nil {
		return fmt.Errorf("encode block info: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kBlock(info.BlockNumber), blockVal, nil); err != nil {
		return err
	}
	if err := batch.Set(kBlockInfo(info.BlockNumber), infoVal, nil); err != nil {
		return err
	}
	if err := batch.Set(kLastBlock(), infoVal, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PostProcessStore) get(key []byte, v any) (bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := decodeGob(val, v); err != nil {
		return false, err
	}
	return true, nil
}

// ReadBlock returns the block by number; nil when unknown.
func (s *PostProcessStore) ReadBlock(n types.BlockNumber) (*types.Block, error) {
	var out types.Block
	ok, err := s.get(kBlock(n), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// ReadBlockInfo returns the block info by number; nil when unknown.
func (s *PostProcessStore) ReadBlockInfo(n types.BlockNumber) (*types.BlockInfo, error) {
	var out types.BlockInfo
	ok, err := s.get(kBlockInfo(n), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// ReadLastBlockInfo returns the most recently written block info; nil on a
// fresh store.
func (s *PostProcessStore) ReadLastBlockInfo() (*types.BlockInfo, error) {
	var out types.BlockInfo
	ok, err := s.get(kLastBlock(), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// WriteOrderbookDepth overwrites the latest depth snapshot for one pair.
// Depth is advisory read data, so the write skips the WAL sync.
func (s *PostProcessStore) WriteOrderbookDepth(pair string, depth types.OrderbookDepth) error {
	val, err := encodeGob(depth)
	if err != nil {
		return fmt.Errorf("encode orderbook depth: %w", err)
	}
	return s.db.Set(kDepth(pair), val, pebble.NoSync)
}

// ReadOrderbookDepth returns the latest depth snapshot for one pair; nil
// when the pair has never been snapshotted.
func (s *PostProcessStore) ReadOrderbookDepth(pair string) (*types.OrderbookDepth, error) {
	var out types.OrderbookDepth
	ok, err := s.get(kDepth(pair), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// WriteCatchupState persists a snapshot and advances the latest pointer.
func (s *PostProcessStore) WriteCatchupState(state types.CatchupState) error {
	val, err := encodeGob(state)
	if err != nil {
		return fmt.Errorf("encode catchup state: %w", err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kCatchup(state.BlockNumber), val, nil); err != nil {
		return err
	}
	if err := batch.Set(kLastCatchup(), val, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// ReadCatchupState returns the snapshot taken at block n; nil when none
// exists.
func (s *PostProcessStore) ReadCatchupState(n types.BlockNumber) (*types.CatchupState, error) {
	var out types.CatchupState
	ok, err := s.get(kCatchup(n), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// ReadLatestCatchupState returns the most recent snapshot; nil before the
// first snapshot boundary.
func (s *PostProcessStore) ReadLatestCatchupState() (*types.CatchupState, error) {
	var out types.CatchupState
	ok, err := s.get(kLastCatchup(), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}
