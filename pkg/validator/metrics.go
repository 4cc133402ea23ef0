package validator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gdex-labs/gdex/pkg/types"
)

// Metrics tracks the validator's execution counters. A fresh registry per
// validator keeps multi-node test processes from colliding.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsProcessed prometheus.Counter
	TransactionsFailed    prometheus.Counter
	TransactionsDuplicate prometheus.Counter
	BlocksProcessed       prometheus.Counter
	CatchupSnapshots      prometheus.Counter
	LastBlockNumber       prometheus.Gauge
	LastBlockTransactions prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		TransactionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdex_transactions_processed_total",
			Help: "Transactions dispatched to the controller router.",
		}),
		TransactionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdex_transactions_failed_total",
			Help: "Transactions recorded with a failed execution result.",
		}),
		TransactionsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdex_transactions_duplicate_total",
			Help: "Transactions dropped by the replay cache.",
		}),
		BlocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdex_blocks_processed_total",
			Help: "Blocks written to the post-process store.",
		}),
		CatchupSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gdex_catchup_snapshots_total",
			Help: "Catchup snapshots written.",
		}),
		LastBlockNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gdex_last_block_number",
			Help: "Number of the most recently written block.",
		}),
		LastBlockTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gdex_last_block_transactions",
			Help: "Transaction count of the most recently written block.",
		}),
	}
	registry.MustRegister(
		m.TransactionsProcessed, m.TransactionsFailed, m.TransactionsDuplicate,
		m.BlocksProcessed, m.CatchupSnapshots, m.LastBlockNumber, m.LastBlockTransactions,
	)
	return m
}

// Registry exposes the metrics for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ProcessEndOfBlock refreshes the per-block gauges.
func (m *Metrics) ProcessEndOfBlock(block types.Block, info types.BlockInfo) {
	m.BlocksProcessed.Inc()
	m.LastBlockNumber.Set(float64(info.BlockNumber))
	m.LastBlockTransactions.Set(float64(len(block.Transactions)))
}
