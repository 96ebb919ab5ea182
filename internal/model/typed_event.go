package model

import (
	"encoding/json"
	"fmt"
)

// TypedEvent is a decoded pool event with the pool metadata known when it
// was decoded. Decoded holds one of the *EventData payloads.
type TypedEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	BlockHash   string      `json:"block_hash"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
	PoolMeta    PoolMeta    `json:"pool_meta"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef points back at the undecoded log.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// TypedEventRecord is a TypedEvent read back from JSONL with the payload
// left raw until the event name is known.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// DecodeInto unmarshals the payload into out.
func (r TypedEventRecord) DecodeInto(out interface{}) error {
	if len(r.Decoded) == 0 {
		return fmt.Errorf("%s %s:%d has no payload", r.EventName, r.TxHash, r.LogIndex)
	}
	if err := json.Unmarshal(r.Decoded, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.EventName, err)
	}
	return nil
}
