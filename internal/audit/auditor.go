// Package audit replays decoded pool events through the tick math kernel and
// reports every event whose reported tick, price or token amounts disagree
// with what the math allows.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"tickscope/internal/model"
	"tickscope/internal/storage"
	"tickscope/internal/storage/postgres"
)

// Config controls audit behavior.
type Config struct {
	// Workers bounds how many pools are replayed at once.
	Workers int
	// EmitOK also reports checks that passed.
	EmitOK bool
	// BatchSize is the postgres insert chunk size.
	BatchSize  int
	StateStore StateStore
}

// Summary counts what a run did.
type Summary struct {
	Events     int
	Failed     int
	Pools      int
	Findings   int
	Mismatches int
	Errors     int
	Skipped    int
	LastBlock  uint64
}

// Auditor checks typed pool events. Findings go to sink and, when store is
// set, to postgres along with the pools they belong to.
type Auditor struct {
	cfg    Config
	sink   storage.FindingSink
	store  *postgres.Store
	logger *zap.Logger
}

func NewAuditor(cfg Config, sink storage.FindingSink, store *postgres.Store, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Auditor{cfg: cfg, sink: sink, store: store, logger: logger}
}

// ReadEvents parses a typed events JSONL stream. Lines that do not parse are
// logged and counted, not fatal.
func ReadEvents(r io.Reader, logger *zap.Logger) ([]model.TypedEventRecord, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var records []model.TypedEventRecord
	failed := 0
	err := storage.ScanJSONL(r, func(lineNo int, line []byte) error {
		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			logger.Warn("decode typed event", zap.Int("line", lineNo), zap.Error(err))
			return nil
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, failed, err
	}
	return records, failed, nil
}

// Run audits every event in r. Every event is replayed so pool prices stay
// right, but only events above the saved block produce findings. The saved
// block moves to the highest block seen once all findings are written.
func (a *Auditor) Run(ctx context.Context, r io.Reader) (Summary, error) {
	var summary Summary

	records, failed, err := ReadEvents(r, a.logger)
	if err != nil {
		return summary, err
	}
	summary.Events, summary.Failed = len(records), failed

	afterBlock, resumed, err := a.loadState(ctx)
	if err != nil {
		return summary, err
	}
	if resumed {
		a.logger.Info("resume audit", zap.Uint64("after_block", afterBlock))
	}

	findings, err := a.Audit(ctx, records, afterBlock)
	if err != nil {
		return summary, err
	}
	pools := registerPools(records)
	summary.Pools = len(pools)
	summary.Findings = len(findings)
	for _, f := range findings {
		switch f.Status {
		case model.StatusMismatch:
			summary.Mismatches++
		case model.StatusError:
			summary.Errors++
		case model.StatusSkipped:
			summary.Skipped++
		}
	}

	if a.sink != nil {
		if err := a.sink.PutFindings(findings); err != nil {
			return summary, fmt.Errorf("write findings: %w", err)
		}
	}
	if a.store != nil {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return summary, fmt.Errorf("upsert pools: %w", err)
		}
		if err := a.store.InsertFindings(ctx, findings, a.cfg.BatchSize); err != nil {
			return summary, err
		}
	}

	summary.LastBlock = afterBlock
	for _, record := range records {
		if record.BlockNumber > summary.LastBlock {
			summary.LastBlock = record.BlockNumber
		}
	}
	if a.cfg.StateStore != nil && summary.LastBlock > afterBlock {
		if err := a.cfg.StateStore.Save(ctx, summary.LastBlock); err != nil {
			return summary, err
		}
	}

	a.logger.Info("audit complete",
		zap.Int("events", summary.Events),
		zap.Int("failed", summary.Failed),
		zap.Int("pools", summary.Pools),
		zap.Int("findings", summary.Findings),
		zap.Int("mismatches", summary.Mismatches),
		zap.Int("errors", summary.Errors),
		zap.Uint64("last_block", summary.LastBlock),
	)
	return summary, nil
}

func (a *Auditor) loadState(ctx context.Context) (uint64, bool, error) {
	if a.cfg.StateStore == nil {
		return 0, false, nil
	}
	return a.cfg.StateStore.Load(ctx)
}

// Audit replays records pool by pool and returns findings for events in
// blocks above afterBlock. Pools come out in order of first appearance and
// each pool's findings in log order. Passing checks are dropped unless
// EmitOK is set.
func (a *Auditor) Audit(ctx context.Context, records []model.TypedEventRecord, afterBlock uint64) ([]model.AuditFinding, error) {
	groups := groupByPool(records)
	results := make([][]model.AuditFinding, len(groups))

	workers, err := ants.NewPool(a.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer workers.Release()

	var wg sync.WaitGroup
	var submitErr error
	for i, events := range groups {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		i, events := i, events
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			replay := &poolReplay{}
			for _, record := range events {
				replay.apply(record)
			}
			results[i] = replay.findings
		}); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit pool replay: %w", err)
			break
		}
	}
	wg.Wait()
	if submitErr != nil {
		return nil, submitErr
	}

	var findings []model.AuditFinding
	for _, poolFindings := range results {
		for _, f := range poolFindings {
			if f.BlockNumber <= afterBlock {
				continue
			}
			if f.Status == model.StatusOK && !a.cfg.EmitOK {
				continue
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func groupByPool(records []model.TypedEventRecord) [][]model.TypedEventRecord {
	index := make(map[string]int)
	var groups [][]model.TypedEventRecord
	for _, record := range records {
		key := poolKey(record.ChainID, record.Address)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], record)
	}
	for _, events := range groups {
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].BlockNumber != events[j].BlockNumber {
				return events[i].BlockNumber < events[j].BlockNumber
			}
			return events[i].LogIndex < events[j].LogIndex
		})
	}
	return groups
}

// registerPools returns one record per pool that carries token metadata,
// stamped with the earliest block it appeared in.
func registerPools(records []model.TypedEventRecord) []model.Pool {
	seen := make(map[string]int)
	var pools []model.Pool
	for _, record := range records {
		meta := record.PoolMeta
		if meta.Token0 == "" || meta.Token1 == "" {
			continue
		}
		key := poolKey(record.ChainID, record.Address)
		if i, ok := seen[key]; ok {
			if record.BlockNumber < pools[i].FirstSeenBlock {
				pools[i].FirstSeenBlock = record.BlockNumber
			}
			continue
		}
		seen[key] = len(pools)
		pools = append(pools, model.NewPool(record.ChainID, record.Address, meta, record.BlockNumber))
	}
	return pools
}

func poolKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}
