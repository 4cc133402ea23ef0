package params

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Load("")
	if cfg.Node.QueueSize != 1000 {
		t.Fatalf("queue size = %d", cfg.Node.QueueSize)
	}
	if cfg.Consensus.BatchSize != 500_000 {
		t.Fatalf("batch size = %d", cfg.Consensus.BatchSize)
	}
	if cfg.Consensus.MaxBatchDelay != 200*time.Millisecond {
		t.Fatalf("max batch delay = %v", cfg.Consensus.MaxBatchDelay)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GDEX_QUEUE_SIZE", "50")
	t.Setenv("GDEX_MAX_BATCH_DELAY_MS", "1000")

	cfg := Load("")
	if cfg.Node.QueueSize != 50 {
		t.Fatalf("queue size = %d", cfg.Node.QueueSize)
	}
	if cfg.Consensus.MaxBatchDelay != time.Second {
		t.Fatalf("max batch delay = %v", cfg.Consensus.MaxBatchDelay)
	}
}
