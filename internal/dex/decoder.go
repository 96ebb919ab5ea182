package dex

import (
	"context"

	"go.uber.org/zap"

	"tickscope/internal/model"
)

// Decoder turns raw logs into typed events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext is shared by every Decode call of one run. With a nil Chain
// nothing is fetched and events carry whatever the pool cache holds.
type DecodeContext struct {
	Context         context.Context
	Chain           Caller
	PoolMetaCache   *PoolMetaCache
	TokenMetaCache  *TokenMetaCache
	Logger          *zap.Logger
	IncludeLiveMeta bool
}

func (c DecodeContext) callContext() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

func (c DecodeContext) offline() bool {
	return c.Chain == nil
}
