package indexer

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"tickscope/internal/model"
)

// collectRecords converts logs in order, dropping logs marked removed by a
// reorg and logs already in seen. seen is updated. Timestamps are left for
// the caller to fill.
func collectRecords(chainID uint64, logs []types.Log, ingestedAt time.Time, seen map[string]struct{}) ([]model.LogRecord, int) {
	stamp := ingestedAt.UTC().Format(time.RFC3339Nano)
	records := make([]model.LogRecord, 0, len(logs))
	dropped := 0
	for _, log := range logs {
		if log.Removed {
			dropped++
			continue
		}
		topics := make([]string, len(log.Topics))
		for i, topic := range log.Topics {
			topics[i] = topic.Hex()
		}
		record := model.LogRecord{
			ChainID:     chainID,
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash.Hex(),
			TxHash:      log.TxHash.Hex(),
			TxIndex:     uint64(log.TxIndex),
			LogIndex:    uint64(log.Index),
			Address:     log.Address.Hex(),
			Topics:      topics,
			Data:        hexutil.Encode(log.Data),
			IngestedAt:  stamp,
		}
		key := record.Key()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		records = append(records, record)
	}
	return records, dropped
}
