package model

// DecodeError is written for every raw log line the decoder rejects.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0,omitempty"`
	Error       string `json:"error"`
}

// NewDecodeError ties err to the log it came from.
func NewDecodeError(record LogRecord, err error) DecodeError {
	out := DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Error:       err.Error(),
	}
	if len(record.Topics) > 0 {
		out.Topic0 = record.Topics[0]
	}
	return out
}
