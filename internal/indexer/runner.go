package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"tickscope/internal/model"
	"tickscope/internal/storage"
)

// Source is the chain access the runner needs. *chain.Client implements it.
type Source interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// Workers bounds concurrent block timestamp lookups.
	Workers int
}

// Runner copies pool logs for a block range into a sink, batch by batch,
// checkpointing after each batch.
type Runner struct {
	cfg        RunConfig
	source     Source
	sink       storage.LogSink
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

func NewRunner(cfg RunConfig, source Source, sink storage.LogSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	switch {
	case r.source == nil:
		return fmt.Errorf("chain client is nil")
	case r.sink == nil:
		return fmt.Errorf("storage is nil")
	case r.cfg.BatchSize == 0:
		return fmt.Errorf("batch size must be greater than zero")
	case len(r.cfg.Addresses) == 0:
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.source.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	from, to := r.cfg.FromBlock, r.cfg.ToBlock
	if to == 0 {
		if to, err = r.source.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}
	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(r.cfg.Workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.syncRange(ctx, pool, chainID, blockRange); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) syncRange(ctx context.Context, pool *ants.Pool, chainID uint64, blockRange BlockRange) error {
	r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	logs, err := retry.DoWithData(func() ([]types.Log, error) {
		return r.source.FilterLogs(ctx, blockRange.From, blockRange.To, r.cfg.Addresses, r.cfg.Topic0)
	}, retryOptions(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.logger, "filter logs",
		zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))...)
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	records, dropped := collectRecords(chainID, logs, time.Now(), r.seen)
	if dropped > 0 {
		r.logger.Debug("dropped logs", zap.Int("count", dropped), zap.Uint64("from", blockRange.From))
	}

	timestamps, err := r.blockTimestamps(ctx, pool, records)
	if err != nil {
		return err
	}
	for i := range records {
		records[i].Timestamp = timestamps[records[i].BlockNumber]
	}

	if err := r.sink.PutLogBatch(records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}
	if err := r.checkpoint.Save(blockRange.To); err != nil {
		return err
	}

	r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	return nil
}

// blockTimestamps resolves the distinct blocks of records concurrently.
func (r *Runner) blockTimestamps(ctx context.Context, pool *ants.Pool, records []model.LogRecord) (map[uint64]uint64, error) {
	blocks := make([]uint64, 0)
	out := make(map[uint64]uint64)
	for _, record := range records {
		if _, ok := out[record.BlockNumber]; !ok {
			out[record.BlockNumber] = 0
			blocks = append(blocks, record.BlockNumber)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, number := range blocks {
		number := number
		wg.Add(1)
		task := func() {
			defer wg.Done()
			ts, err := retry.DoWithData(func() (uint64, error) {
				return r.source.BlockTimestamp(ctx, number)
			}, retryOptions(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.logger, "block timestamp", zap.Uint64("block_number", number))...)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("block timestamp %d: %w", number, err)
				}
				return
			}
			out[number] = ts
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			return nil, fmt.Errorf("submit timestamp task: %w", err)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
