package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tickscope/internal/model"
)

var (
	testPool  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOwner = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func cachedContext(meta model.PoolMeta) DecodeContext {
	cache := NewPoolMetaCache()
	cache.Set(testPool, meta)
	return DecodeContext{PoolMetaCache: cache, Logger: zap.NewNop()}
}

func packData(t *testing.T, event string, values ...interface{}) []byte {
	t.Helper()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Events[event].Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)
	return data
}

func eventLog(t *testing.T, event string, data []byte, indexed ...common.Hash) model.LogRecord {
	t.Helper()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)

	topics := []string{poolABI.Events[event].ID.Hex()}
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     testPool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	v := big.NewInt(int64(value))
	if value < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(v)
}

func TestV3PoolDecoderInitialize(t *testing.T) {
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)

	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)
	log := eventLog(t, model.EventInitialize, packData(t, model.EventInitialize, sqrtPrice, big.NewInt(-7)))

	event, err := decoder.Decode(log, cachedContext(model.PoolMeta{Fee: 3000, TickSpacing: 60}))
	require.NoError(t, err)
	assert.Equal(t, model.EventInitialize, event.EventName)

	payload, ok := event.Decoded.(model.InitializeEventData)
	require.True(t, ok)
	assert.Equal(t, "79228162514264337593543950336", payload.SqrtPriceX96)
	assert.Equal(t, int32(-7), payload.Tick)
	assert.Equal(t, int32(60), event.PoolMeta.TickSpacing)
}

func TestV3PoolDecoderSwap(t *testing.T) {
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	data := packData(t, model.EventSwap, big.NewInt(-1000), big.NewInt(2000), big.NewInt(123456789), big.NewInt(987654321), big.NewInt(-15))
	log := eventLog(t, model.EventSwap, data, topicFromAddress(sender), topicFromAddress(recipient))

	event, err := decoder.Decode(log, cachedContext(model.PoolMeta{Fee: 2500, TickSpacing: 50}))
	require.NoError(t, err)

	swap, ok := event.Decoded.(model.SwapEventData)
	require.True(t, ok)
	assert.Equal(t, "-1000", swap.Amount0)
	assert.Equal(t, "2000", swap.Amount1)
	assert.Equal(t, "123456789", swap.SqrtPriceX96)
	assert.Equal(t, int32(-15), swap.Tick)
	assert.Equal(t, sender.Hex(), swap.Sender)
	assert.Equal(t, recipient.Hex(), swap.Recipient)
	assert.Equal(t, uint32(2500), event.PoolMeta.Fee)
	assert.Equal(t, log.Topics[0], event.Raw.Topic0)
}

func TestV3PoolDecoderMintBurnCollect(t *testing.T) {
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)
	ctx := cachedContext(model.PoolMeta{Fee: 500, TickSpacing: 10})

	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	mintLog := eventLog(t, model.EventMint,
		packData(t, model.EventMint, sender, big.NewInt(5000), big.NewInt(100), big.NewInt(200)),
		topicFromAddress(testOwner), topicFromInt24(-120), topicFromInt24(120))
	event, err := decoder.Decode(mintLog, ctx)
	require.NoError(t, err)
	mint, ok := event.Decoded.(model.MintEventData)
	require.True(t, ok)
	assert.Equal(t, model.MintEventData{
		Sender: sender.Hex(), Owner: testOwner.Hex(),
		TickLower: -120, TickUpper: 120,
		Amount: "5000", Amount0: "100", Amount1: "200",
	}, mint)

	burnLog := eventLog(t, model.EventBurn,
		packData(t, model.EventBurn, big.NewInt(7000), big.NewInt(300), big.NewInt(400)),
		topicFromAddress(testOwner), topicFromInt24(-60), topicFromInt24(60))
	event, err = decoder.Decode(burnLog, ctx)
	require.NoError(t, err)
	burn, ok := event.Decoded.(model.BurnEventData)
	require.True(t, ok)
	assert.Equal(t, "7000", burn.Amount)
	assert.Equal(t, int32(-60), burn.TickLower)

	collectLog := eventLog(t, model.EventCollect,
		packData(t, model.EventCollect, recipient, big.NewInt(900), big.NewInt(1000)),
		topicFromAddress(testOwner), topicFromInt24(-10), topicFromInt24(10))
	event, err = decoder.Decode(collectLog, ctx)
	require.NoError(t, err)
	collect, ok := event.Decoded.(model.CollectEventData)
	require.True(t, ok)
	assert.Equal(t, "900", collect.Amount0)
	assert.Equal(t, "1000", collect.Amount1)
	assert.Equal(t, recipient.Hex(), collect.Recipient)
}

func TestV3PoolDecoderRejects(t *testing.T) {
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)
	ctx := cachedContext(model.PoolMeta{})

	_, err = decoder.Decode(model.LogRecord{Address: testPool.Hex()}, ctx)
	assert.Error(t, err)

	unknown := model.LogRecord{Address: testPool.Hex(), Topics: []string{common.Hash{}.Hex()}}
	_, err = decoder.Decode(unknown, ctx)
	assert.Error(t, err)

	// Burn needs three indexed topics
	short := eventLog(t, model.EventBurn, packData(t, model.EventBurn, big.NewInt(1), big.NewInt(1), big.NewInt(1)), topicFromAddress(testOwner))
	_, err = decoder.Decode(short, ctx)
	assert.Error(t, err)
}

func TestTopic0Map(t *testing.T) {
	alias := "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"
	decoder, err := NewV3PoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: " swap "}})
	require.NoError(t, err)
	assert.True(t, decoder.CanDecode(alias))
	assert.False(t, decoder.CanDecode(""))

	_, err = NewV3PoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "flash"}})
	assert.Error(t, err)
}

func TestDefaultTopic0(t *testing.T) {
	topics, err := DefaultTopic0()
	require.NoError(t, err)
	require.Len(t, topics, len(PoolEvents))

	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)
	for _, topic := range topics {
		assert.True(t, decoder.CanDecode(topic.Hex()))
	}
	// keccak256("Initialize(uint160,int24)")
	assert.Equal(t, "0x98636036cb66a9c19a37435efc1e90142190214e8abeb821bdba3f2990dd4c95", topics[0].Hex())
}
