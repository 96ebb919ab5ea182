package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tickscope/internal/model"
)

// Caller is the eth_call subset metadata lookups need. *chain.Client implements it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// addressCache is a concurrent map keyed by contract address.
type addressCache[V any] struct {
	mu   sync.RWMutex
	data map[common.Address]V
}

func (c *addressCache[V]) Get(address common.Address) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[address]
	return v, ok
}

func (c *addressCache[V]) Set(address common.Address, v V) {
	c.mu.Lock()
	c.data[address] = v
	c.mu.Unlock()
}

type (
	PoolMetaCache  = addressCache[model.PoolMeta]
	TokenMetaCache = addressCache[model.TokenMeta]
)

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

// FetchPoolMeta loads the immutable pool fields and warms tokenCache with
// both tokens. Token lookups are best effort.
func FetchPoolMeta(ctx context.Context, caller Caller, pool common.Address, tokenCache *TokenMetaCache, logger *zap.Logger) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	first := func(method string) (interface{}, error) {
		values, err := callMethod(ctx, caller, pool, poolABI, method, nil)
		if err != nil {
			return nil, err
		}
		return values[0], nil
	}

	var meta model.PoolMeta
	tokens := make([]common.Address, 2)
	for i, method := range []string{"token0", "token1"} {
		value, err := first(method)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if tokens[i], err = asAddress(value); err != nil {
			return model.PoolMeta{}, fmt.Errorf("%s: %w", method, err)
		}
	}
	meta.Token0, meta.Token1 = tokens[0].Hex(), tokens[1].Hex()

	value, err := first("fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	fee, err := asBigInt(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee.Uint64())

	value, err = first("tickSpacing")
	if err != nil {
		return model.PoolMeta{}, err
	}
	spacing, err := asBigInt(value)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	if meta.TickSpacing, err = int24FromBig(spacing); err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	if tokenCache != nil {
		for _, token := range tokens {
			if _, ok := tokenCache.Get(token); ok {
				continue
			}
			tokenMeta, err := FetchTokenMeta(ctx, caller, token, logger)
			if err != nil {
				logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
			}
			tokenCache.Set(token, tokenMeta)
		}
	}
	return meta, nil
}

// FetchPoolOptionalMeta reads liquidity and slot0 at blockNumber (latest when
// zero). Failed calls leave the field empty. A slot0 whose tick disagrees with
// its price is logged.
func FetchPoolOptionalMeta(ctx context.Context, caller Caller, pool common.Address, blockNumber uint64, logger *zap.Logger) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}

	var meta model.PoolMeta
	if values, err := callMethod(ctx, caller, pool, poolABI, "liquidity", block); err != nil {
		logger.Debug("liquidity call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	} else if liquidity, err := asBigInt(values[0]); err == nil {
		meta.Liquidity = liquidity.String()
	}

	values, err := callMethod(ctx, caller, pool, poolABI, "slot0", block)
	if err != nil {
		logger.Debug("slot0 call failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return meta, nil
	}
	slot0, err := slot0FromValues(values)
	if err != nil {
		logger.Debug("slot0 decode failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return meta, nil
	}
	if ok, err := slot0.Consistent(); err != nil || !ok {
		logger.Warn("slot0 tick does not match price",
			zap.String("pool", pool.Hex()),
			zap.String("sqrt_price_x96", slot0.SqrtPriceX96),
			zap.Int32("tick", slot0.Tick),
			zap.Error(err),
		)
	}
	meta.Slot0 = &slot0
	return meta, nil
}

func slot0FromValues(values []interface{}) (model.PoolSlot0, error) {
	if len(values) < 2 {
		return model.PoolSlot0{}, fmt.Errorf("unexpected slot0 values: %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolSlot0{}, err
	}
	tickValue, err := asBigInt(values[1])
	if err != nil {
		return model.PoolSlot0{}, err
	}
	tick, err := int24FromBig(tickValue)
	if err != nil {
		return model.PoolSlot0{}, err
	}
	return model.PoolSlot0{SqrtPriceX96: sqrtPrice.String(), Tick: tick}, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

// FetchTokenMeta reads decimals, symbol and name. Only decimals is required.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	stringABI, bytes32ABI, err := erc20ABIs()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, err
	}

	text := func(method string) string {
		if values, err := callMethod(ctx, caller, token, stringABI, method, nil); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := callMethod(ctx, caller, token, bytes32ABI, method, nil)
		if err != nil {
			logger.Debug("token call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
			return ""
		}
		s, _ := bytes32ToString(values[0])
		return s
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")
	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("uint8 overflow: %s", v)
	}
	return uint8(v.Uint64()), nil
}

var (
	minInt24 = big.NewInt(-1 << 23)
	maxInt24 = big.NewInt(1<<23 - 1)
)

func int24FromBig(value *big.Int) (int32, error) {
	if value == nil {
		return 0, fmt.Errorf("int24 is nil")
	}
	if value.Cmp(minInt24) < 0 || value.Cmp(maxInt24) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value)
	}
	return int32(value.Int64()), nil
}
