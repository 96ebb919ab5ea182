package tickmath

import (
	"fmt"

	"github.com/holiman/uint256"
)

var feeTickSpacing = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// TickSpacingForFee returns the spacing the factory enables for a fee tier.
func TickSpacingForFee(fee uint32) (int32, bool) {
	spacing, ok := feeTickSpacing[fee]
	return spacing, ok
}

// CheckTicks validates a position range the way a pool does before minting or burning.
func CheckTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: [%d, %d]", ErrTickOrder, tickLower, tickUpper)
	}
	if tickLower < MinTick {
		return fmt.Errorf("%w: %d", ErrTickLowerTooLow, tickLower)
	}
	if tickUpper > MaxTick {
		return fmt.Errorf("%w: %d", ErrTickUpperTooHigh, tickUpper)
	}
	return nil
}

// CheckSpacing reports whether both ends of a range sit on the spacing grid.
func CheckSpacing(tickLower, tickUpper, spacing int32) error {
	if spacing <= 0 {
		return fmt.Errorf("invalid tick spacing %d", spacing)
	}
	if tickLower%spacing != 0 {
		return fmt.Errorf("%w: %d (spacing %d)", ErrTickSpacing, tickLower, spacing)
	}
	if tickUpper%spacing != 0 {
		return fmt.Errorf("%w: %d (spacing %d)", ErrTickSpacing, tickUpper, spacing)
	}
	return nil
}

// NearestUsableTick rounds tick to the closest multiple of spacing, halves
// rounding up, and pulls the result back inside [MinTick, MaxTick].
func NearestUsableTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	rem := tick % spacing
	if rem < 0 {
		q--
		rem += spacing
	}
	if 2*rem >= spacing {
		q++
	}
	rounded := q * spacing
	if rounded < MinTick {
		return rounded + spacing
	}
	if rounded > MaxTick {
		return rounded - spacing
	}
	return rounded
}

// MaxLiquidityPerTick is the per-tick liquidity cap for a spacing, chosen so
// that every usable tick fully initialised cannot overflow uint128.
func MaxLiquidityPerTick(spacing int32) *uint256.Int {
	if spacing <= 0 {
		return new(uint256.Int)
	}
	minTick := (MinTick / spacing) * spacing
	maxTick := (MaxTick / spacing) * spacing
	numTicks := uint64((maxTick-minTick)/spacing) + 1

	maxUint128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	return maxUint128.Div(maxUint128, uint256.NewInt(numTicks))
}
