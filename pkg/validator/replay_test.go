package validator

import (
	"testing"

	"github.com/gdex-labs/gdex/pkg/crypto"
)

func digestOf(b byte) crypto.Digest {
	return crypto.Hash([]byte{b})
}

func TestReplayCacheRejectsDuplicates(t *testing.T) {
	cache := NewReplayCache(10)

	if !cache.Insert(digestOf(1)) {
		t.Fatal("first insert must succeed")
	}
	if cache.Insert(digestOf(1)) {
		t.Fatal("duplicate in the same block must be rejected")
	}

	cache.Advance()
	if cache.Insert(digestOf(1)) {
		t.Fatal("duplicate within the window must be rejected")
	}
}

func TestReplayCacheEvictsBeyondWindow(t *testing.T) {
	cache := NewReplayCache(3)

	cache.Insert(digestOf(1))
	for i := 0; i < 3; i++ {
		cache.Advance()
	}
	// the bucket holding digest 1 has been evicted
	if !cache.Insert(digestOf(1)) {
		t.Fatal("digest older than the window must be accepted again")
	}
}

func TestReplayCacheLen(t *testing.T) {
	cache := NewReplayCache(2)
	cache.Insert(digestOf(1))
	cache.Insert(digestOf(2))
	cache.Advance()
	cache.Insert(digestOf(3))
	if cache.Len() != 3 {
		t.Fatalf("len = %d, want 3", cache.Len())
	}
	cache.Advance()
	if cache.Len() != 1 {
		t.Fatalf("len after eviction = %d, want 1", cache.Len())
	}
}
