package sqrtprice

import "github.com/holiman/uint256"

func toUint128(v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(maxUint128) {
		return nil, ErrLiquidityOverflow
	}
	return v, nil
}

// GetLiquidityForAmount0 is the liquidity that amount0 buys over [sqrtA, sqrtB].
func GetLiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	intermediate, err := MulDiv(sqrtA, sqrtB, q96)
	if err != nil {
		return nil, err
	}
	liquidity, err := MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return toUint128(liquidity)
}

// GetLiquidityForAmount1 is the liquidity that amount1 buys over [sqrtA, sqrtB].
func GetLiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	liquidity, err := MulDiv(amount1, q96, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return toUint128(liquidity)
}

// GetLiquidityForAmounts is the most liquidity that amount0 and amount1 can
// back over [sqrtA, sqrtB] at the current price.
func GetLiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)

	if !sqrtPriceX96.Gt(sqrtA) {
		return GetLiquidityForAmount0(sqrtA, sqrtB, amount0)
	}
	if sqrtPriceX96.Lt(sqrtB) {
		liquidity0, err := GetLiquidityForAmount0(sqrtPriceX96, sqrtB, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := GetLiquidityForAmount1(sqrtA, sqrtPriceX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Lt(liquidity1) {
			return liquidity0, nil
		}
		return liquidity1, nil
	}
	return GetLiquidityForAmount1(sqrtA, sqrtB, amount1)
}

// GetAmountsForLiquidity is the inverse of GetLiquidityForAmounts, rounding down.
func GetAmountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)

	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	var err error
	switch {
	case !sqrtPriceX96.Gt(sqrtA):
		amount0, err = GetAmount0Delta(sqrtA, sqrtB, liquidity, false)
	case sqrtPriceX96.Lt(sqrtB):
		amount0, err = GetAmount0Delta(sqrtPriceX96, sqrtB, liquidity, false)
		if err == nil {
			amount1, err = GetAmount1Delta(sqrtA, sqrtPriceX96, liquidity, false)
		}
	default:
		amount1, err = GetAmount1Delta(sqrtA, sqrtB, liquidity, false)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
