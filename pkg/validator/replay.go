package validator

import (
	"sync"

	"github.com/gdex-labs/gdex/pkg/crypto"
)

// ReplayWindowBlocks is how many blocks of transaction digests the replay
// cache keeps, counting the block currently being assembled.
const ReplayWindowBlocks = 100

// ReplayCache remembers the digests of every transaction executed in the
// last N blocks. A digest seen twice inside the window is a duplicate and
// is dropped from the block.
type ReplayCache struct {
	mu      sync.Mutex
	window  int
	buckets []map[crypto.Digest]struct{} // one bucket per block, newest last
	all     map[crypto.Digest]struct{}
}

func NewReplayCache(windowBlocks int) *ReplayCache {
	return &ReplayCache{
		window:  windowBlocks,
		buckets: []map[crypto.Digest]struct{}{make(map[crypto.Digest]struct{})},
		all:     make(map[crypto.Digest]struct{}),
	}
}

// Insert records a digest in the current block's bucket. It reports false
// when the digest is already inside the window.
func (c *ReplayCache) Insert(d crypto.Digest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.all[d]; dup {
		return false
	}
	c.all[d] = struct{}{}
	c.buckets[len(c.buckets)-1][d] = struct{}{}
	return true
}

// Advance closes the current block's bucket and evicts the oldest bucket
// beyond the window. Called once per completed block.
func (c *ReplayCache) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = append(c.buckets, make(map[crypto.Digest]struct{}))
	for len(c.buckets) > c.window {
		for d := range c.buckets[0] {
			delete(c.all, d)
		}
		c.buckets = c.buckets[1:]
	}
}

// Len reports how many digests the window currently holds.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.all)
}
