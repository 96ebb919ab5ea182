package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickscope/internal/audit"
	"tickscope/internal/config"
	"tickscope/internal/storage"
	"tickscope/internal/storage/postgres"
)

func runAudit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAudit(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *postgres.Store
	if cfg.PGDSN != "" {
		if store, err = postgres.NewStore(ctx, cfg.PGDSN); err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var stateStore audit.StateStore
	switch {
	case cfg.StateFile != "":
		stateStore = &audit.FileStateStore{Path: cfg.StateFile}
	case store != nil:
		stateStore = &audit.DBStateStore{Store: store, Name: cfg.StateName}
	}

	var sink storage.FindingSink
	if cfg.Out != "" {
		// Resumed runs only report new blocks, so findings accumulate.
		writer, err := storage.CreateJSONL(cfg.Out, stateStore != nil)
		if err != nil {
			return err
		}
		defer writer.Close()
		sink = writer
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	logger.Info("audit start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("state_file", cfg.StateFile),
		zap.Int("workers", cfg.Workers),
		zap.Bool("emit_ok", cfg.EmitOK),
	)

	auditor := audit.NewAuditor(audit.Config{
		Workers:    cfg.Workers,
		EmitOK:     cfg.EmitOK,
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
	}, sink, store, logger)

	summary, err := auditor.Run(ctx, input)
	if err != nil {
		return err
	}
	if summary.Mismatches > 0 || summary.Errors > 0 {
		logger.Warn("audit found inconsistencies",
			zap.Int("mismatches", summary.Mismatches),
			zap.Int("errors", summary.Errors),
		)
	}
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
