package model

// Pool is the stored row for a pool seen in the event stream.
type Pool struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Fee            uint32 `json:"fee"`
	TickSpacing    int32  `json:"tick_spacing"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}

// NewPool builds the stored row from decoded metadata.
func NewPool(chainID uint64, address string, meta PoolMeta, firstSeenBlock uint64) Pool {
	return Pool{
		ChainID:        chainID,
		Address:        address,
		Token0:         meta.Token0,
		Token1:         meta.Token1,
		Fee:            meta.Fee,
		TickSpacing:    meta.Spacing(),
		FirstSeenBlock: firstSeenBlock,
	}
}
