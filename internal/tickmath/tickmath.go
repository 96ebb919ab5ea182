// Package tickmath converts between ticks and Q64.96 square root prices
// using the same fixed point steps as the on-chain pool, so results are bit
// exact with the values pools emit.
package tickmath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	minSqrtRatio = uint256.NewInt(4295128739)
	maxSqrtRatio = mustDecimal("1461446703485210103287273052203988822378723970342")

	maxUint256 = new(uint256.Int).Not(new(uint256.Int))
	q128       = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	lowMask32  = uint256.NewInt(0xffffffff)

	// sqrt(1.0001)^-(2^i) in Q128.128, i = 0..19.
	tickFactors = [20]*uint256.Int{
		mustHex("fffcb933bd6fad37aa2d162d1a594001"),
		mustHex("fff97272373d413259a46990580e213a"),
		mustHex("fff2e50f5f656932ef12357cf3c7fdcc"),
		mustHex("ffe5caca7e10e4e61c3624eaa0941cd0"),
		mustHex("ffcb9843d60f6159c9db58835c926644"),
		mustHex("ff973b41fa98c081472e6896dfb254c0"),
		mustHex("ff2ea16466c96a3843ec78b326b52861"),
		mustHex("fe5dee046a99a2a811c461f1969c3053"),
		mustHex("fcbe86c7900a88aedcffc83b479aa3a4"),
		mustHex("f987a7253ac413176f2b074cf7815e54"),
		mustHex("f3392b0822b70005940c7a398e4b70f3"),
		mustHex("e7159475a2c29b7443b29c7fa6e889d9"),
		mustHex("d097f3bdfd2022b8845ad8f792aa5825"),
		mustHex("a9f746462d870fdf8a65dc1f90e061e5"),
		mustHex("70d869a156d2a1b890bb3df62baf32f7"),
		mustHex("31be135f97d08fd981231505542fcfa6"),
		mustHex("9aa508b5b7a84e1c677de54f3e99bc9"),
		mustHex("5d6af8dedb81196699c329225ee604"),
		mustHex("2216e584f5fa1ea926041bedfe98"),
		mustHex("48a170391f7dc42444e8fa2"),
	}

	// log_sqrt(1.0001)(2) in Q64.64 and the error bounds of the 14 bit log2
	// approximation in Q128.128.
	log2ToLogSqrt10001 = mustDecimal("255738958999603826347141")
	tickLowOffset      = mustDecimal("3402992956809132418596140100660247210")
	tickHighOffset     = mustDecimal("291339464771989622907027621153398088495")
)

// MinSqrtRatio returns the sqrt price at MinTick.
func MinSqrtRatio() *uint256.Int {
	return new(uint256.Int).Set(minSqrtRatio)
}

// MaxSqrtRatio returns the sqrt price at MaxTick. It is itself not a valid
// input to GetTickAtSqrtRatio.
func MaxSqrtRatio() *uint256.Int {
	return new(uint256.Int).Set(maxSqrtRatio)
}

// GetSqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, rounded up.
func GetSqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(tickFactors[0])
	} else {
		ratio.Set(q128)
	}
	for i := 1; i < len(tickFactors); i++ {
		if absTick&(1<<uint(i)) == 0 {
			continue
		}
		ratio.Mul(ratio, tickFactors[i])
		ratio.Rsh(ratio, 128)
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the result never understates the price.
	remainder := new(uint256.Int).And(ratio, lowMask32)
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt price is less than
// or equal to sqrtPriceX96.
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96 == nil {
		return 0, fmt.Errorf("%w: nil", ErrRatioOutOfRange)
	}
	if sqrtPriceX96.Lt(minSqrtRatio) || !sqrtPriceX96.Lt(maxSqrtRatio) {
		return 0, fmt.Errorf("%w: %s", ErrRatioOutOfRange, sqrtPriceX96.ToBig())
	}

	ratio := new(uint256.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	// Normalise to [2^127, 2^128) so squaring stays inside 256 bits.
	r := new(uint256.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	log2 := signedShl64(msb - 128)
	f := new(uint256.Int)
	for bit := 63; bit >= 50; bit-- {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f.Rsh(r, 128)
		if f.IsZero() {
			continue
		}
		log2.Or(log2, new(uint256.Int).Lsh(uint256.NewInt(1), uint(bit)))
		r.Rsh(r, 1)
	}

	logSqrt10001 := new(uint256.Int).Mul(log2, log2ToLogSqrt10001)

	low := new(uint256.Int).Sub(logSqrt10001, tickLowOffset)
	high := new(uint256.Int).Add(logSqrt10001, tickHighOffset)
	tickLow := signedToInt32(new(uint256.Int).SRsh(low, 128))
	tickHigh := signedToInt32(new(uint256.Int).SRsh(high, 128))

	if tickLow == tickHigh {
		return tickLow, nil
	}
	highRatio, err := GetSqrtRatioAtTick(tickHigh)
	if err == nil && !highRatio.Gt(sqrtPriceX96) {
		return tickHigh, nil
	}
	return tickLow, nil
}

// SqrtRatioAtTickBig is GetSqrtRatioAtTick for callers working in big.Int.
func SqrtRatioAtTickBig(tick int32) (*big.Int, error) {
	ratio, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return ratio.ToBig(), nil
}

// TickAtSqrtRatioBig is GetTickAtSqrtRatio for callers working in big.Int.
func TickAtSqrtRatioBig(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil {
		return 0, fmt.Errorf("%w: nil", ErrRatioOutOfRange)
	}
	if sqrtPriceX96.Sign() < 0 {
		return 0, fmt.Errorf("%w: %s", ErrRatioOutOfRange, sqrtPriceX96)
	}
	value, overflow := uint256.FromBig(sqrtPriceX96)
	if overflow {
		return 0, fmt.Errorf("%w: %s", ErrRatioOutOfRange, sqrtPriceX96)
	}
	return GetTickAtSqrtRatio(value)
}

// signedShl64 returns n << 64 as a two's complement 256 bit value.
func signedShl64(n int) *uint256.Int {
	if n >= 0 {
		return new(uint256.Int).Lsh(uint256.NewInt(uint64(n)), 64)
	}
	v := new(uint256.Int).Lsh(uint256.NewInt(uint64(-n)), 64)
	return v.Neg(v)
}

func signedToInt32(v *uint256.Int) int32 {
	if v.Sign() < 0 {
		return -int32(new(uint256.Int).Neg(v).Uint64())
	}
	return int32(v.Uint64())
}

func mustHex(s string) *uint256.Int {
	b, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("tickmath: bad hex constant " + s)
	}
	return uint256.MustFromBig(b)
}

func mustDecimal(s string) *uint256.Int {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("tickmath: bad decimal constant " + s)
	}
	return uint256.MustFromBig(b)
}
