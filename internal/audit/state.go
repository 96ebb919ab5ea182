package audit

import (
	"context"
	"fmt"
	"time"

	"tickscope/internal/storage"
	"tickscope/internal/storage/postgres"
)

// StateStore persists the last block whose findings were emitted.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// FileStateStore keeps the marker in a local JSON file. An empty Path
// disables it.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

func (s *FileStateStore) Load(context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	var rec stateRecord
	ok, err := storage.ReadJSON(s.Path, &rec)
	if err != nil {
		return 0, false, fmt.Errorf("load audit state: %w", err)
	}
	return rec.LastProcessedBlock, ok, nil
}

func (s *FileStateStore) Save(_ context.Context, block uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	rec := stateRecord{
		LastProcessedBlock: block,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := storage.WriteJSONAtomic(s.Path, rec); err != nil {
		return fmt.Errorf("save audit state: %w", err)
	}
	return nil
}

// DBStateStore keeps the marker in the indexer_state table under Name.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, block uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, block)
}
