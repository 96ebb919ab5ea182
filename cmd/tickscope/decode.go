package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tickscope/internal/chain"
	"tickscope/internal/config"
	"tickscope/internal/dex"
	"tickscope/internal/model"
	"tickscope/internal/storage"
)

type eventWriter interface {
	Write(value interface{}) error
}

type decodeStats struct {
	total, decoded, skipped, failed int
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
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

	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		PoolMetaCache:   dex.NewPoolMetaCache(),
		TokenMetaCache:  dex.NewTokenMetaCache(),
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}
	if cfg.RPCURL != "" {
		chainClient, err := chain.Dial(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		decodeCtx.Chain = chainClient
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	out, err := storage.CreateJSONL(cfg.Out, false)
	if err != nil {
		return err
	}
	defer out.Close()

	var errs eventWriter
	if cfg.Errors != "" {
		errWriter, err := storage.CreateJSONL(cfg.Errors, false)
		if err != nil {
			return err
		}
		defer errWriter.Close()
		errs = errWriter
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Bool("offline", decodeCtx.Chain == nil),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
	)

	stats, err := decodeStream(input, decoder, decodeCtx, out, errs)
	if err != nil {
		return err
	}
	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)
	return out.Flush()
}

// decodeStream decodes every raw log line of r. Logs no decoder knows are
// skipped; failures go to errs when it is set.
func decodeStream(r io.Reader, decoder dex.Decoder, decodeCtx dex.DecodeContext, out, errs eventWriter) (decodeStats, error) {
	var stats decodeStats
	fail := func(decodeErr model.DecodeError) {
		stats.failed++
		if errs != nil {
			_ = errs.Write(decodeErr)
		}
	}

	err := storage.ScanJSONL(r, func(_ int, line []byte) error {
		stats.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			fail(model.DecodeError{Error: err.Error()})
			return nil
		}
		if len(record.Topics) == 0 {
			fail(model.NewDecodeError(record, fmt.Errorf("missing topic0")))
			return nil
		}
		if !decoder.CanDecode(record.Topics[0]) {
			stats.skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			fail(model.NewDecodeError(record, err))
			return nil
		}
		if err := out.Write(event); err != nil {
			return err
		}
		stats.decoded++
		return nil
	})
	return stats, err
}
