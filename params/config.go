// Package params carries the node-local configuration: everything that is
// not replicated state. Values layer ENV > .env file > defaults.
package params

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Node struct {
	DBDir      string
	LogFile    string
	// QueueSize bounds the consensus-to-execution channel; a full queue
	// blocks the consensus driver, which is the intended flow control.
	QueueSize int
}

type Consensus struct {
	BatchSize     int
	MaxBatchDelay time.Duration
}

type Config struct {
	Node      Node
	Consensus Consensus
}

func Default() Config {
	return Config{
		Node: Node{
			DBDir:     "data/db",
			LogFile:   "data/node.log",
			QueueSize: 1000,
		},
		Consensus: Consensus{
			BatchSize:     500_000,
			MaxBatchDelay: 200 * time.Millisecond,
		},
	}
}

// Load reads an optional .env file, then lets GDEX_-prefixed environment
// variables override the defaults.
func Load(envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("GDEX")
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("DB_DIR", cfg.Node.DBDir)
	v.SetDefault("LOG_FILE", cfg.Node.LogFile)
	v.SetDefault("QUEUE_SIZE", cfg.Node.QueueSize)
	v.SetDefault("BATCH_SIZE", cfg.Consensus.BatchSize)
	v.SetDefault("MAX_BATCH_DELAY_MS", int(cfg.Consensus.MaxBatchDelay.Milliseconds()))

	cfg.Node.DBDir = v.GetString("DB_DIR")
	cfg.Node.LogFile = v.GetString("LOG_FILE")
	cfg.Node.QueueSize = v.GetInt("QUEUE_SIZE")
	cfg.Consensus.BatchSize = v.GetInt("BATCH_SIZE")
	cfg.Consensus.MaxBatchDelay = time.Duration(v.GetInt("MAX_BATCH_DELAY_MS")) * time.Millisecond

	return cfg
}
