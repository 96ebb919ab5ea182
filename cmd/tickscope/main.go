package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tickscope/internal/chain"
	"tickscope/internal/config"
	"tickscope/internal/dex"
	"tickscope/internal/indexer"
	"tickscope/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tickscope",
		Short:        "Concentrated liquidity pool log indexer and tick math auditor",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Copy pool logs for a block range into JSONL",
		RunE:  runIndexer,
	}
	runCmd.Flags().String("rpc", "", "JSON-RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 hashes or pool event names (comma-separated), defaults to all pool events")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int("workers", 8, "concurrent block timestamp lookups")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed pool events",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("rpc", "", "JSON-RPC URL, omit to decode without pool metadata")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0=event aliases (comma-separated)")
	decodeCmd.Flags().Bool("include-live-meta", false, "attach slot0 and liquidity at the log block (needs an archive node)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Check typed pool events against tick math",
		RunE:  runAudit,
	}
	auditCmd.Flags().String("in", "", "input typed events JSONL")
	auditCmd.Flags().String("out", "./data/audit_findings.jsonl", "findings JSONL path, empty to skip")
	auditCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for pools and findings")
	auditCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	auditCmd.Flags().String("state-file", "", "local file tracking the last audited block")
	auditCmd.Flags().String("state-name", "audit", "state row name when tracking progress in Postgres")
	auditCmd.Flags().Bool("emit-ok", false, "also report passing checks")
	auditCmd.Flags().Int("workers", 4, "pools replayed concurrently")
	auditCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(auditCmd)

	root.AddCommand(newTickCmd(), newSqrtCmd())
	return root
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		if topic0, err = dex.DefaultTopic0(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		Workers:           cfg.Workers,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("indexer start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)
	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
