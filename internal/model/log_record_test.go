package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordKey(t *testing.T) {
	record := LogRecord{BlockNumber: 36000000, TxHash: "0xdef456", LogIndex: 12}
	assert.Equal(t, "36000000:0xdef456:12", record.Key())
}

func TestLogRecordFieldNames(t *testing.T) {
	data, err := json.Marshal(LogRecord{ChainID: 1, Topics: []string{"0xaaa"}})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"chain_id", "block_number", "tx_hash", "log_index", "topics", "ingested_at"} {
		assert.Contains(t, decoded, key)
	}
}
