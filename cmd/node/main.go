// The node binary runs one validator: it restores or bootstraps controller
// state, attaches the execution pipeline to the consensus driver, and
// serves the relayer RPC and metrics endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gdex-labs/gdex/params"
	"github.com/gdex-labs/gdex/pkg/consensus"
	"github.com/gdex-labs/gdex/pkg/controller"
	"github.com/gdex-labs/gdex/pkg/crypto"
	"github.com/gdex-labs/gdex/pkg/genesis"
	"github.com/gdex-labs/gdex/pkg/relayer"
	"github.com/gdex-labs/gdex/pkg/storage"
	"github.com/gdex-labs/gdex/pkg/util"
	"github.com/gdex-labs/gdex/pkg/validator"
)

func main() {
	root := &cobra.Command{
		Use:          "node",
		Short:        "gdex validator node",
		SilenceUsage: true,
	}
	root.AddCommand(runCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	var (
		dbDir          string
		keyPath        string
		genesisDir     string
		name           string
		grpcAddress    string
		jsonrpcAddress string
		metricsAddress string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the validator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := params.Load("")
			if dbDir != "" {
				cfg.Node.DBDir = dbDir
			}

			logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer logger.Sync()
			sugar := logger.Sugar().Named(name)

			keyPair, err := crypto.LoadKeyPair(keyPath)
			if err != nil {
				return fmt.Errorf("load key: %w", err)
			}

			if genesisDir == "" {
				genesisDir = genesis.ConfigDir()
			}
			genesisState, err := genesis.Load(genesisDir)
			if err != nil {
				return fmt.Errorf("load genesis: %w", err)
			}

			store, err := storage.Open(cfg.Node.DBDir)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			router := controller.NewRouter(sugar)
			state := validator.NewState(name, router, store, genesisState.Committee(), sugar)

			// resume from the latest snapshot when one exists,
			// otherwise replay the genesis ceremony
			if catchup, err := store.ReadLatestCatchupState(); err == nil && catchup != nil {
				router.InitializeControllers()
				if err := state.RestoreFromCatchup(catchup); err != nil {
					return fmt.Errorf("restore catchup: %w", err)
				}
			} else if err := genesisState.InitializeState(router); err != nil {
				return fmt.Errorf("initialize genesis state: %w", err)
			}

			sugar.Infow("node_starting",
				"name", name,
				"public_key", fmt.Sprintf("%x", keyPair.Public),
				"validators", len(genesisState.Validators),
				"block_number", state.BlockNumber(),
				"batch_size", cfg.Consensus.BatchSize,
				"max_batch_delay", cfg.Consensus.MaxBatchDelay,
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The BFT transport attaches to this driver; ordered
			// certified batches flow in, backpressure flows out.
			driver := consensus.NewChannelDriver(cfg.Node.QueueSize)
			_ = grpcAddress // consensus transport binds here; external to this process
			svc := validator.SpawnPostProcessService(ctx, driver, state)

			rpc := relayer.NewServer(state, sugar)
			go func() {
				addr, err := multiaddrToHostPort(jsonrpcAddress)
				if err != nil {
					sugar.Fatalw("bad_jsonrpc_address", "addr", jsonrpcAddress, "err", err)
				}
				if err := rpc.Serve(addr); err != nil {
					sugar.Fatalw("rpc_server_failed", "err", err)
				}
			}()

			go func() {
				addr, err := multiaddrToHostPort(metricsAddress)
				if err != nil {
					sugar.Fatalw("bad_metrics_address", "addr", metricsAddress, "err", err)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(state.Metrics.Registry(), promhttp.HandlerOpts{}))
				sugar.Infow("metrics_listening", "addr", addr)
				if err := http.ListenAndServe(addr, mux); err != nil {
					sugar.Fatalw("metrics_server_failed", "err", err)
				}
			}()

			<-ctx.Done()
			sugar.Info("shutdown_requested")
			svc.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&dbDir, "db-dir", "", "database directory")
	cmd.Flags().StringVar(&keyPath, "key-path", "", "validator key seed file")
	cmd.Flags().StringVar(&genesisDir, "genesis-dir", "", "genesis directory (defaults to GDEX_CONFIG_DIR)")
	cmd.Flags().StringVar(&name, "name", "", "validator name")
	cmd.Flags().StringVar(&grpcAddress, "grpc-address", "/ip4/127.0.0.1/tcp/8000", "transaction submission multiaddr")
	cmd.Flags().StringVar(&jsonrpcAddress, "jsonrpc-address", "/ip4/127.0.0.1/tcp/8545", "relayer RPC multiaddr")
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "/ip4/127.0.0.1/tcp/9184", "metrics multiaddr")
	_ = cmd.MarkFlagRequired("key-path")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// multiaddrToHostPort flattens /ip4/HOST/tcp/PORT (or /dns4) into the
// host:port form net/http expects.
func multiaddrToHostPort(raw string) (string, error) {
	addr, err := ma.NewMultiaddr(raw)
	if err != nil {
		return "", err
	}
	host, err := addr.ValueForProtocol(ma.P_IP4)
	if err != nil {
		if host, err = addr.ValueForProtocol(ma.P_DNS4); err != nil {
			return "", fmt.Errorf("multiaddr %s: no host component", raw)
		}
	}
	port, err := addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", fmt.Errorf("multiaddr %s: no tcp component", raw)
	}
	return fmt.Sprintf("%s:%s", host, port), nil
}
