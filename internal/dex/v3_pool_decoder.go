package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"tickscope/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 -> event name aliases for forks that rename events.
	Topic0Map map[string]string
}

// V3PoolDecoder decodes concentrated liquidity pool events.
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

type eventFields map[string]interface{}

var payloadBuilders = map[string]func(eventFields) (interface{}, error){
	model.EventInitialize: buildInitialize,
	model.EventSwap:       buildSwap,
	model.EventMint:       buildMint,
	model.EventBurn:       buildBurn,
	model.EventCollect:    buildCollect,
}

func NewV3PoolDecoder(cfg DecoderConfig) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(PoolEvents)+len(cfg.Topic0Map))
	for _, name := range PoolEvents {
		topicToName[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}
	for topic0, alias := range cfg.Topic0Map {
		name := normalizeEventName(alias)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", alias)
		}
		if topic0 != "" {
			topicToName[strings.ToLower(topic0)] = name
		}
	}

	return &V3PoolDecoder{poolABI: poolABI, topicToName: topicToName}, nil
}

func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode resolves the event by topic0, unpacks indexed and data fields, and
// attaches pool metadata.
func (d *V3PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}

	fields, err := d.unpack(d.poolABI.Events[name], log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	payload, err := payloadBuilders[name](fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	meta, err := poolMeta(ctx, common.HexToAddress(log.Address), log.BlockNumber)
	if err != nil {
		return nil, err
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     payload,
		PoolMeta:    meta,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func (d *V3PoolDecoder) unpack(event abi.Event, log model.LogRecord) (eventFields, error) {
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}

	topics := make([]common.Hash, 0, len(indexed))
	for _, topic := range log.Topics[1:] {
		raw, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(raw) > common.HashLength {
			return nil, fmt.Errorf("topic length %d", len(raw))
		}
		topics = append(topics, common.BytesToHash(raw))
	}

	fields := eventFields{}
	if err := abi.ParseTopicsIntoMap(fields, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	return fields, nil
}

func (f eventFields) address(key string) (string, error) {
	addr, err := asAddress(f[key])
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return addr.Hex(), nil
}

func (f eventFields) integer(key string) (string, error) {
	v, err := asBigInt(f[key])
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return v.String(), nil
}

func (f eventFields) tick(key string) (int32, error) {
	v, err := asBigInt(f[key])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return int24FromBig(v)
}

// fieldReader reads keys in order and keeps the first failure.
type fieldReader struct {
	fields eventFields
	err    error
}

func (r *fieldReader) address(key string) string {
	if r.err != nil {
		return ""
	}
	var s string
	s, r.err = r.fields.address(key)
	return s
}

func (r *fieldReader) integer(key string) string {
	if r.err != nil {
		return ""
	}
	var s string
	s, r.err = r.fields.integer(key)
	return s
}

func (r *fieldReader) tick(key string) int32 {
	if r.err != nil {
		return 0
	}
	var t int32
	t, r.err = r.fields.tick(key)
	return t
}

func buildInitialize(f eventFields) (interface{}, error) {
	r := fieldReader{fields: f}
	out := model.InitializeEventData{
		SqrtPriceX96: r.integer("sqrtPriceX96"),
		Tick:         r.tick("tick"),
	}
	return out, r.err
}

func buildSwap(f eventFields) (interface{}, error) {
	r := fieldReader{fields: f}
	out := model.SwapEventData{
		Sender:       r.address("sender"),
		Recipient:    r.address("recipient"),
		Amount0:      r.integer("amount0"),
		Amount1:      r.integer("amount1"),
		SqrtPriceX96: r.integer("sqrtPriceX96"),
		Liquidity:    r.integer("liquidity"),
		Tick:         r.tick("tick"),
	}
	return out, r.err
}

func buildMint(f eventFields) (interface{}, error) {
	r := fieldReader{fields: f}
	out := model.MintEventData{
		Sender:    r.address("sender"),
		Owner:     r.address("owner"),
		TickLower: r.tick("tickLower"),
		TickUpper: r.tick("tickUpper"),
		Amount:    r.integer("amount"),
		Amount0:   r.integer("amount0"),
		Amount1:   r.integer("amount1"),
	}
	return out, r.err
}

func buildBurn(f eventFields) (interface{}, error) {
	r := fieldReader{fields: f}
	out := model.BurnEventData{
		Owner:     r.address("owner"),
		TickLower: r.tick("tickLower"),
		TickUpper: r.tick("tickUpper"),
		Amount:    r.integer("amount"),
		Amount0:   r.integer("amount0"),
		Amount1:   r.integer("amount1"),
	}
	return out, r.err
}

func buildCollect(f eventFields) (interface{}, error) {
	r := fieldReader{fields: f}
	out := model.CollectEventData{
		Owner:     r.address("owner"),
		Recipient: r.address("recipient"),
		TickLower: r.tick("tickLower"),
		TickUpper: r.tick("tickUpper"),
		Amount0:   r.integer("amount0"),
		Amount1:   r.integer("amount1"),
	}
	return out, r.err
}

func normalizeEventName(name string) string {
	name = strings.TrimSpace(name)
	for _, known := range PoolEvents {
		if strings.EqualFold(name, known) {
			return known
		}
	}
	return ""
}

func poolMeta(ctx DecodeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var (
		meta   model.PoolMeta
		cached bool
	)
	if ctx.PoolMetaCache != nil {
		meta, cached = ctx.PoolMetaCache.Get(pool)
	}
	if ctx.offline() {
		return meta, nil
	}
	callCtx := ctx.callContext()

	if !cached {
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Chain, pool, ctx.TokenMetaCache, ctx.Logger)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}

	if ctx.IncludeLiveMeta {
		live, err := FetchPoolOptionalMeta(callCtx, ctx.Chain, pool, blockNumber, ctx.Logger)
		if err == nil {
			if live.Liquidity != "" {
				meta.Liquidity = live.Liquidity
			}
			if live.Slot0 != nil {
				meta.Slot0 = live.Slot0
			}
		}
	}
	return meta, nil
}
