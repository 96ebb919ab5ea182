// Package postgres persists pools, audit findings and progress markers.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickscope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id         BIGINT  NOT NULL,
	pool_address     TEXT    NOT NULL,
	token0           TEXT    NOT NULL,
	token1           TEXT    NOT NULL,
	fee              INTEGER NOT NULL,
	tick_spacing     INTEGER NOT NULL,
	first_seen_block BIGINT  NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);

CREATE TABLE IF NOT EXISTS audit_findings (
	chain_id     BIGINT NOT NULL,
	pool_address TEXT   NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash      TEXT   NOT NULL,
	log_index    BIGINT NOT NULL,
	event_name   TEXT   NOT NULL,
	check_name   TEXT   NOT NULL,
	status       TEXT   NOT NULL,
	code         TEXT   NOT NULL DEFAULT '',
	expected     TEXT   NOT NULL DEFAULT '',
	actual       TEXT   NOT NULL DEFAULT '',
	detail       TEXT   NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash, log_index, check_name)
);

CREATE INDEX IF NOT EXISTS audit_findings_pool_block
	ON audit_findings (chain_id, pool_address, block_number);

CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT   PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store is a pgx pool backed store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables this store writes to if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPools inserts or updates pool metadata, keeping the earliest first_seen_block.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (chain_id, pool_address, token0, token1, fee, tick_spacing, first_seen_block)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (chain_id, pool_address) DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Token0,
			pool.Token1,
			int64(pool.Fee),
			pool.TickSpacing,
			int64(pool.FirstSeenBlock),
		)
	}
	return s.sendBatch(ctx, batch)
}

// InsertFindings writes findings in chunks of batchSize. Re-auditing the same
// event overwrites its earlier finding.
func (s *Store) InsertFindings(ctx context.Context, findings []model.AuditFinding, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(findings); start += batchSize {
		end := start + batchSize
		if end > len(findings) {
			end = len(findings)
		}
		batch := &pgx.Batch{}
		for _, f := range findings[start:end] {
			batch.Queue(`
				INSERT INTO audit_findings (
					chain_id, pool_address, block_number, tx_hash, log_index, event_name,
					check_name, status, code, expected, actual, detail
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (chain_id, tx_hash, log_index, check_name) DO UPDATE SET
					status = EXCLUDED.status,
					code = EXCLUDED.code,
					expected = EXCLUDED.expected,
					actual = EXCLUDED.actual,
					detail = EXCLUDED.detail,
					created_at = now()
			`,
				int64(f.ChainID),
				f.PoolAddress,
				int64(f.BlockNumber),
				f.TxHash,
				int64(f.LogIndex),
				f.EventName,
				f.Check,
				f.Status,
				f.Code,
				f.Expected,
				f.Actual,
				f.Detail,
			)
		}
		if err := s.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert findings: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	err := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name = $1`, name).Scan(&block)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState records the last processed block under name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
