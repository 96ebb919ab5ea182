package audit

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"

	"tickscope/internal/model"
	"tickscope/internal/sqrtprice"
	"tickscope/internal/tickmath"
)

// poolReplay walks one pool's events in log order, tracking the price and
// tick the pool held after each Initialize or Swap.
type poolReplay struct {
	sqrtPriceX96 *uint256.Int
	tick         int32
	initialized  bool

	findings []model.AuditFinding
}

func (p *poolReplay) apply(rec model.TypedEventRecord) {
	var err error
	switch rec.EventName {
	case model.EventInitialize:
		var data model.InitializeEventData
		if err = rec.DecodeInto(&data); err == nil {
			p.checkPrice(rec, model.CheckInitializeTick, data.SqrtPriceX96, data.Tick)
		}
	case model.EventSwap:
		var data model.SwapEventData
		if err = rec.DecodeInto(&data); err == nil {
			p.checkPrice(rec, model.CheckSwapTick, data.SqrtPriceX96, data.Tick)
		}
	case model.EventMint:
		var data model.MintEventData
		if err = rec.DecodeInto(&data); err == nil {
			p.checkPosition(rec, model.CheckMintAmounts, data.TickLower, data.TickUpper, data.Amount, data.Amount0, data.Amount1, true)
		}
	case model.EventBurn:
		var data model.BurnEventData
		if err = rec.DecodeInto(&data); err == nil {
			p.checkPosition(rec, model.CheckBurnAmounts, data.TickLower, data.TickUpper, data.Amount, data.Amount0, data.Amount1, false)
		}
	case model.EventCollect:
		var data model.CollectEventData
		if err = rec.DecodeInto(&data); err == nil {
			p.checkRange(rec, data.TickLower, data.TickUpper)
		}
	default:
		return
	}
	if err != nil {
		p.add(rec, model.AuditFinding{Check: eventCheck(rec.EventName), Status: model.StatusError, Detail: err.Error()})
	}
}

func eventCheck(eventName string) string {
	switch eventName {
	case model.EventInitialize:
		return model.CheckInitializeTick
	case model.EventSwap:
		return model.CheckSwapTick
	case model.EventMint:
		return model.CheckMintAmounts
	case model.EventBurn:
		return model.CheckBurnAmounts
	default:
		return model.CheckTickRange
	}
}

func (p *poolReplay) add(rec model.TypedEventRecord, f model.AuditFinding) {
	f.ChainID = rec.ChainID
	f.PoolAddress = rec.Address
	f.BlockNumber = rec.BlockNumber
	f.TxHash = rec.TxHash
	f.LogIndex = rec.LogIndex
	f.EventName = rec.EventName
	p.findings = append(p.findings, f)
}

// checkPrice verifies a reported (sqrtPriceX96, tick) pair and moves the
// replayed pool to it.
func (p *poolReplay) checkPrice(rec model.TypedEventRecord, check, rawPrice string, reportedTick int32) {
	price, err := parseUint256(rawPrice)
	if err != nil {
		p.initialized = false
		p.add(rec, model.AuditFinding{Check: check, Status: model.StatusError, Actual: rawPrice, Detail: err.Error()})
		return
	}

	tick, err := tickmath.GetTickAtSqrtRatio(price)
	if err != nil {
		p.initialized = false
		p.add(rec, model.AuditFinding{
			Check:  model.CheckPriceRange,
			Status: model.StatusMismatch,
			Code:   tickmath.Code(err),
			Actual: rawPrice,
			Detail: err.Error(),
		})
		return
	}

	p.sqrtPriceX96, p.tick, p.initialized = price, reportedTick, true

	finding := model.AuditFinding{
		Check:    check,
		Status:   model.StatusOK,
		Expected: strconv.Itoa(int(tick)),
		Actual:   strconv.Itoa(int(reportedTick)),
	}
	switch {
	case reportedTick == tick:
	case check == model.CheckSwapTick && reportedTick == tick-1 && onTickBoundary(price, tick):
		// a swap moving down that stops exactly on an initialized tick leaves
		// the pool one tick below the tick of its price
		finding.Detail = "swap ended on tick boundary"
	default:
		finding.Status = model.StatusMismatch
	}
	p.add(rec, finding)
}

func onTickBoundary(price *uint256.Int, tick int32) bool {
	ratio, err := tickmath.GetSqrtRatioAtTick(tick)
	return err == nil && ratio.Eq(price)
}

// checkRange reports whether a position range is one the pool would accept
// and returns false when it is not.
func (p *poolReplay) checkRange(rec model.TypedEventRecord, tickLower, tickUpper int32) bool {
	actual := fmt.Sprintf("[%d, %d]", tickLower, tickUpper)
	err := tickmath.CheckTicks(tickLower, tickUpper)
	if err == nil {
		if spacing := rec.PoolMeta.Spacing(); spacing > 0 {
			err = tickmath.CheckSpacing(tickLower, tickUpper, spacing)
		}
	}
	if err != nil {
		p.add(rec, model.AuditFinding{
			Check:  model.CheckTickRange,
			Status: model.StatusMismatch,
			Code:   tickmath.Code(err),
			Actual: actual,
			Detail: err.Error(),
		})
		return false
	}
	p.add(rec, model.AuditFinding{Check: model.CheckTickRange, Status: model.StatusOK, Actual: actual})
	return true
}

// checkPosition recomputes the token amounts a pool moves for a liquidity
// change at the replayed price. Mints round up, burns round down.
func (p *poolReplay) checkPosition(rec model.TypedEventRecord, check string, tickLower, tickUpper int32, rawLiquidity, rawAmount0, rawAmount1 string, roundUp bool) {
	if !p.checkRange(rec, tickLower, tickUpper) {
		return
	}
	actual := rawAmount0 + "," + rawAmount1
	if !p.initialized {
		p.add(rec, model.AuditFinding{Check: check, Status: model.StatusSkipped, Actual: actual, Detail: "pool price unknown"})
		return
	}

	liquidity, err := parseUint256(rawLiquidity)
	if err != nil {
		p.add(rec, model.AuditFinding{Check: check, Status: model.StatusError, Detail: "liquidity: " + err.Error()})
		return
	}
	reported0, err0 := parseUint256(rawAmount0)
	reported1, err1 := parseUint256(rawAmount1)
	if err0 != nil || err1 != nil {
		p.add(rec, model.AuditFinding{Check: check, Status: model.StatusError, Actual: actual, Detail: "unparseable amounts"})
		return
	}

	amount0, amount1, err := sqrtprice.AmountsForLiquidityDelta(p.tick, p.sqrtPriceX96, tickLower, tickUpper, liquidity, roundUp)
	if err != nil {
		p.add(rec, model.AuditFinding{Check: check, Status: model.StatusError, Code: tickmath.Code(err), Actual: actual, Detail: err.Error()})
		return
	}

	finding := model.AuditFinding{
		Check:    check,
		Status:   model.StatusOK,
		Expected: dec(amount0) + "," + dec(amount1),
		Actual:   dec(reported0) + "," + dec(reported1),
	}
	if !amount0.Eq(reported0) || !amount1.Eq(reported1) {
		finding.Status = model.StatusMismatch
	}
	p.add(rec, finding)
}

func parseUint256(s string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s exceeds 256 bits", s)
	}
	return v, nil
}

func dec(v *uint256.Int) string {
	return v.ToBig().String()
}
