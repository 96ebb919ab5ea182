package audit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickscope/internal/model"
)

const (
	poolA = "0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8"
	poolB = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"

	// sqrt(1) in Q64.96, tick 0
	priceOne = "79228162514264337593543950336"
	// exact sqrt ratios of ticks -30 and -60
	priceTickMinus30 = "79109415290437042302807587396"
	priceTickMinus60 = "78990846045029531151608375686"
	// one above the ratio at tick -30
	priceNearMinus30 = "79109415290437042302807599741"
)

var spacing60 = model.PoolMeta{Token0: "0xa", Token1: "0xb", Fee: 3000, TickSpacing: 60}

type memorySink struct {
	findings []model.AuditFinding
}

func (m *memorySink) PutFindings(findings []model.AuditFinding) error {
	m.findings = append(m.findings, findings...)
	return nil
}

func record(t *testing.T, pool string, block, logIndex uint64, name string, payload interface{}) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.TypedEventRecord{
		ChainID:     1,
		BlockNumber: block,
		TxHash:      "0xtx",
		LogIndex:    logIndex,
		Address:     pool,
		EventName:   name,
		Decoded:     raw,
		PoolMeta:    spacing60,
	}
}

func initialize(t *testing.T, pool string, block uint64, price string, tick int32) model.TypedEventRecord {
	return record(t, pool, block, 0, model.EventInitialize, model.InitializeEventData{SqrtPriceX96: price, Tick: tick})
}

func swap(t *testing.T, pool string, block, logIndex uint64, price string, tick int32) model.TypedEventRecord {
	return record(t, pool, block, logIndex, model.EventSwap, model.SwapEventData{SqrtPriceX96: price, Tick: tick, Liquidity: "1"})
}

func mint(t *testing.T, pool string, block, logIndex uint64, lower, upper int32, liquidity, amount0, amount1 string) model.TypedEventRecord {
	return record(t, pool, block, logIndex, model.EventMint, model.MintEventData{
		TickLower: lower, TickUpper: upper, Amount: liquidity, Amount0: amount0, Amount1: amount1,
	})
}

func burn(t *testing.T, pool string, block, logIndex uint64, lower, upper int32, liquidity, amount0, amount1 string) model.TypedEventRecord {
	return record(t, pool, block, logIndex, model.EventBurn, model.BurnEventData{
		TickLower: lower, TickUpper: upper, Amount: liquidity, Amount0: amount0, Amount1: amount1,
	})
}

func findingsByCheck(findings []model.AuditFinding, check string) []model.AuditFinding {
	var out []model.AuditFinding
	for _, f := range findings {
		if f.Check == check {
			out = append(out, f)
		}
	}
	return out
}

func TestAuditPriceChecks(t *testing.T) {
	auditor := NewAuditor(Config{EmitOK: true}, nil, nil, nil)
	records := []model.TypedEventRecord{
		initialize(t, poolA, 10, priceOne, 0),
		swap(t, poolA, 11, 0, priceNearMinus30, -30),
		swap(t, poolA, 11, 1, priceTickMinus60, -61),
		swap(t, poolA, 12, 0, priceTickMinus30, -29),
		swap(t, poolA, 12, 1, "4295128738", 0),
	}

	findings, err := auditor.Audit(context.Background(), records, 0)
	require.NoError(t, err)
	require.Len(t, findings, 5)

	assert.Equal(t, model.CheckInitializeTick, findings[0].Check)
	assert.Equal(t, model.StatusOK, findings[0].Status)

	assert.Equal(t, model.StatusOK, findings[1].Status)
	assert.Equal(t, "-30", findings[1].Expected)

	assert.Equal(t, model.StatusOK, findings[2].Status, "stopping on a tick boundary leaves the pool one tick lower")
	assert.Equal(t, "-60", findings[2].Expected)
	assert.Equal(t, "-61", findings[2].Actual)
	assert.NotEmpty(t, findings[2].Detail)

	assert.Equal(t, model.StatusMismatch, findings[3].Status)
	assert.Equal(t, "-30", findings[3].Expected)
	assert.Equal(t, "-29", findings[3].Actual)
	assert.True(t, findings[3].Failed())

	assert.Equal(t, model.CheckPriceRange, findings[4].Check)
	assert.Equal(t, model.StatusMismatch, findings[4].Status)
	assert.Equal(t, "R", findings[4].Code)
}

func TestAuditBoundaryOnlyAppliesToSwaps(t *testing.T) {
	auditor := NewAuditor(Config{}, nil, nil, nil)
	findings, err := auditor.Audit(context.Background(), []model.TypedEventRecord{
		initialize(t, poolA, 1, priceTickMinus60, -61),
	}, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, model.StatusMismatch, findings[0].Status)
}

func TestAuditPositionAmounts(t *testing.T) {
	auditor := NewAuditor(Config{EmitOK: true}, nil, nil, nil)
	liquidity := "1000000000000000000"
	records := []model.TypedEventRecord{
		initialize(t, poolA, 1, priceOne, 0),
		mint(t, poolA, 2, 0, -60, 60, liquidity, "2995354955910781", "2995354955910781"),
		burn(t, poolA, 3, 0, -60, 60, liquidity, "2995354955910780", "2995354955910780"),
		burn(t, poolA, 4, 0, -60, 60, liquidity, "2995354955910781", "2995354955910780"),
	}

	findings, err := auditor.Audit(context.Background(), records, 0)
	require.NoError(t, err)

	ranges := findingsByCheck(findings, model.CheckTickRange)
	require.Len(t, ranges, 3)
	for _, f := range ranges {
		assert.Equal(t, model.StatusOK, f.Status)
	}

	mints := findingsByCheck(findings, model.CheckMintAmounts)
	require.Len(t, mints, 1)
	assert.Equal(t, model.StatusOK, mints[0].Status)
	assert.Equal(t, "2995354955910781,2995354955910781", mints[0].Expected)

	burns := findingsByCheck(findings, model.CheckBurnAmounts)
	require.Len(t, burns, 2)
	assert.Equal(t, model.StatusOK, burns[0].Status)
	assert.Equal(t, model.StatusMismatch, burns[1].Status)
	assert.Equal(t, "2995354955910780,2995354955910780", burns[1].Expected)
	assert.Equal(t, "2995354955910781,2995354955910780", burns[1].Actual)
}

func TestAuditRangeChecksAndUnknownPrice(t *testing.T) {
	auditor := NewAuditor(Config{}, nil, nil, nil)
	collect := record(t, poolA, 5, 0, model.EventCollect, model.CollectEventData{TickLower: 60, TickUpper: -60})
	records := []model.TypedEventRecord{
		mint(t, poolA, 2, 0, -60, 60, "1", "1", "1"),
		mint(t, poolA, 3, 0, -50, 60, "1", "1", "1"),
		mint(t, poolA, 4, 0, -887280, 60, "1", "1", "1"),
		collect,
	}

	findings, err := auditor.Audit(context.Background(), records, 0)
	require.NoError(t, err)
	require.Len(t, findings, 4)

	assert.Equal(t, model.CheckMintAmounts, findings[0].Check)
	assert.Equal(t, model.StatusSkipped, findings[0].Status)

	assert.Equal(t, model.CheckTickRange, findings[1].Check)
	assert.Equal(t, "TS", findings[1].Code)

	assert.Equal(t, "TLM", findings[2].Code)

	assert.Equal(t, model.CheckTickRange, findings[3].Check)
	assert.Equal(t, "TLU", findings[3].Code)
}

func TestAuditUndecodablePayload(t *testing.T) {
	auditor := NewAuditor(Config{}, nil, nil, nil)
	bad := model.TypedEventRecord{Address: poolA, BlockNumber: 1, EventName: model.EventSwap, Decoded: json.RawMessage(`{"tick":"x"}`)}

	findings, err := auditor.Audit(context.Background(), []model.TypedEventRecord{bad}, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, model.StatusError, findings[0].Status)
	assert.Equal(t, model.CheckSwapTick, findings[0].Check)
}

func TestAuditOrdersPoolsAndEvents(t *testing.T) {
	auditor := NewAuditor(Config{Workers: 2}, nil, nil, nil)
	records := []model.TypedEventRecord{
		swap(t, poolB, 7, 0, priceOne, 1),
		swap(t, poolA, 9, 3, priceOne, 2),
		swap(t, strings.ToLower(poolA), 9, 1, priceOne, 3),
		initialize(t, poolA, 8, priceOne, 4),
	}

	findings, err := auditor.Audit(context.Background(), records, 0)
	require.NoError(t, err)
	require.Len(t, findings, 4)

	got := make([]string, 0, len(findings))
	for _, f := range findings {
		got = append(got, f.Actual)
	}
	assert.Equal(t, []string{"1", "4", "3", "2"}, got)
}

func TestAuditSeparatesChains(t *testing.T) {
	auditor := NewAuditor(Config{}, nil, nil, nil)
	onOther := mint(t, poolA, 2, 0, -60, 60, "1000000000000000000", "2995354955910781", "2995354955910781")
	onOther.ChainID = 10
	records := []model.TypedEventRecord{
		initialize(t, poolA, 1, priceOne, 0),
		onOther,
	}

	findings, err := auditor.Audit(context.Background(), records, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1, "the price on chain 1 says nothing about chain 10")
	assert.Equal(t, uint64(10), findings[0].ChainID)
	assert.Equal(t, model.StatusSkipped, findings[0].Status)

	pools := registerPools(records)
	require.Len(t, pools, 2)
	assert.Equal(t, uint64(1), pools[0].ChainID)
	assert.Equal(t, uint64(10), pools[1].ChainID)
}

func TestAuditAfterBlockStillReplays(t *testing.T) {
	auditor := NewAuditor(Config{}, nil, nil, nil)
	records := []model.TypedEventRecord{
		initialize(t, poolA, 1, priceOne, 0),
		mint(t, poolA, 2, 0, -60, 60, "1000000000000000000", "1", "1"),
		mint(t, poolA, 3, 0, -60, 60, "1000000000000000000", "1", "1"),
	}

	findings, err := auditor.Audit(context.Background(), records, 2)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, uint64(3), findings[0].BlockNumber)
	assert.Equal(t, model.StatusMismatch, findings[0].Status, "price from block 1 is still known")
}

func TestRunResumesFromState(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "audit_state.json")
	state := &FileStateStore{Path: statePath}

	lines := func(records ...model.TypedEventRecord) string {
		var b strings.Builder
		for _, r := range records {
			raw, err := json.Marshal(r)
			require.NoError(t, err)
			b.Write(raw)
			b.WriteByte('\n')
		}
		b.WriteString("not json\n")
		return b.String()
	}
	first := lines(
		initialize(t, poolA, 1, priceOne, 1),
		swap(t, poolA, 2, 0, priceOne, 0),
	)

	sink := &memorySink{}
	summary, err := NewAuditor(Config{StateStore: state}, sink, nil, nil).Run(context.Background(), strings.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Events)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Pools)
	assert.Equal(t, 1, summary.Mismatches)
	assert.Equal(t, uint64(2), summary.LastBlock)
	require.Len(t, sink.findings, 1)

	block, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), block)

	second := lines(
		initialize(t, poolA, 1, priceOne, 1),
		swap(t, poolA, 2, 0, priceOne, 0),
		swap(t, poolA, 3, 0, priceOne, 5),
	)
	sink = &memorySink{}
	summary, err = NewAuditor(Config{StateStore: state}, sink, nil, nil).Run(context.Background(), strings.NewReader(second))
	require.NoError(t, err)
	require.Len(t, sink.findings, 1)
	assert.Equal(t, uint64(3), sink.findings[0].BlockNumber)
	assert.Equal(t, uint64(3), summary.LastBlock)
}

func TestRegisterPoolsKeepsEarliestBlock(t *testing.T) {
	records := []model.TypedEventRecord{
		swap(t, poolA, 9, 0, priceOne, 0),
		swap(t, strings.ToLower(poolA), 4, 0, priceOne, 0),
		{Address: poolB, BlockNumber: 1},
	}
	pools := registerPools(records)
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(4), pools[0].FirstSeenBlock)
	assert.Equal(t, int32(60), pools[0].TickSpacing)
}

func TestFileStateStoreDisabled(t *testing.T) {
	var store *FileStateStore
	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, (&FileStateStore{}).Save(context.Background(), 5))
}
