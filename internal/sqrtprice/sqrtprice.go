package sqrtprice

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"tickscope/internal/tickmath"
)

// priceScale is the number of fractional digits kept before decimal shifting.
const priceScale = 36

func sortRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// GetAmount0Delta returns the token0 amount between two prices for a liquidity:
// L * (sqrtB - sqrtA) / (sqrtA * sqrtB) in Q96.
func GetAmount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.BitLen() > 128 {
		return nil, ErrLiquidityOverflow
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		x, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return divRoundingUp(x, sqrtA), nil
	}
	x, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return x.Div(x, sqrtA), nil
}

// GetAmount1Delta returns the token1 amount between two prices for a liquidity:
// L * (sqrtB - sqrtA) in Q96.
func GetAmount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if liquidity.BitLen() > 128 {
		return nil, ErrLiquidityOverflow
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, q96)
	}
	return MulDiv(liquidity, diff, q96)
}

// AmountsForLiquidityDelta returns what a pool at (tickCurrent, sqrtPriceX96)
// charges for adding liquidity to [tickLower, tickUpper) (roundUp) or pays out
// for removing it (round down).
func AmountsForLiquidityDelta(tickCurrent int32, sqrtPriceX96 *uint256.Int, tickLower, tickUpper int32, liquidity *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, error) {
	if err := tickmath.CheckTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	sqrtLower, err := tickmath.GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := tickmath.GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}

	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	switch {
	case tickCurrent < tickLower:
		amount0, err = GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	case tickCurrent < tickUpper:
		amount0, err = GetAmount0Delta(sqrtPriceX96, sqrtUpper, liquidity, roundUp)
		if err == nil {
			amount1, err = GetAmount1Delta(sqrtLower, sqrtPriceX96, liquidity, roundUp)
		}
	default:
		amount1, err = GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// EncodeSqrtRatioX96 returns sqrt(amount1/amount0) * 2^96, rounded down.
func EncodeSqrtRatioX96(amount1, amount0 *big.Int) (*uint256.Int, error) {
	if amount0.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return nil, fmt.Errorf("negative amounts %s/%s", amount1, amount0)
	}
	ratioX192 := new(big.Int).Lsh(amount1, 192)
	ratioX192.Quo(ratioX192, amount0)
	result, overflow := uint256.FromBig(ratioX192.Sqrt(ratioX192))
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// Price converts a sqrt price into token1 per token0 in whole token units.
func Price(sqrtPriceX96 *uint256.Int, decimals0, decimals1 int32) decimal.Decimal {
	squared := new(big.Int).Mul(sqrtPriceX96.ToBig(), sqrtPriceX96.ToBig())
	q192 := new(big.Int).Lsh(big.NewInt(1), 192)
	raw := decimal.NewFromBigInt(squared, 0).DivRound(decimal.NewFromBigInt(q192, 0), priceScale)
	return raw.Shift(decimals0 - decimals1)
}

// TickPrice is Price at the sqrt price of a tick.
func TickPrice(tick int32, decimals0, decimals1 int32) (decimal.Decimal, error) {
	sqrtPriceX96, err := tickmath.GetSqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return Price(sqrtPriceX96, decimals0, decimals1), nil
}
