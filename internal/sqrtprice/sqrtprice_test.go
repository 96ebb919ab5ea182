package sqrtprice

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickscope/internal/tickmath"
)

func encode(t *testing.T, amount1, amount0 int64) *uint256.Int {
	t.Helper()
	v, err := EncodeSqrtRatioX96(big.NewInt(amount1), big.NewInt(amount0))
	require.NoError(t, err)
	return v
}

func eth(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func TestEncodeSqrtRatioX96(t *testing.T) {
	assert.Equal(t, "79228162514264337593543950336", encode(t, 1, 1).ToBig().String())
	assert.Equal(t, "87150978765690771352898345369", encode(t, 121, 100).ToBig().String())
	assert.Equal(t, "9903520314283042199192993792", encode(t, 1, 64).ToBig().String())

	_, err := EncodeSqrtRatioX96(big.NewInt(1), big.NewInt(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDiv(t *testing.T) {
	max := new(uint256.Int).Not(new(uint256.Int))

	got, err := MulDiv(max, max, max)
	require.NoError(t, err)
	assert.True(t, got.Eq(max))

	got, err = MulDivRoundingUp(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.Uint64())

	got, err = MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Uint64())

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = MulDiv(max, max, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)

	// max*max/(max-1) rounds up past 2^256-1
	_, err = MulDivRoundingUp(max, max, new(uint256.Int).SubUint64(max, 1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMulDivWideProduct(t *testing.T) {
	max := new(uint256.Int).Not(new(uint256.Int))
	cases := []struct {
		a, b, d *uint256.Int
	}{
		{max, uint256.NewInt(3), uint256.NewInt(7)},
		{q96, q96, uint256.NewInt(1_000_003)},
		{new(uint256.Int).Lsh(uint256.NewInt(1), 200), new(uint256.Int).Lsh(uint256.NewInt(1), 120), new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 160), 1)},
		{max, uint256.NewInt(1 << 40), new(uint256.Int).AddUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 100), 1)},
	}
	for _, tc := range cases {
		product := new(big.Int).Mul(tc.a.ToBig(), tc.b.ToBig())
		want, rem := new(big.Int).QuoRem(product, tc.d.ToBig(), new(big.Int))

		got, err := MulDiv(tc.a, tc.b, tc.d)
		require.NoError(t, err)
		assert.Equal(t, want.String(), got.ToBig().String())

		if rem.Sign() != 0 {
			want.Add(want, big.NewInt(1))
		}
		got, err = MulDivRoundingUp(tc.a, tc.b, tc.d)
		require.NoError(t, err)
		assert.Equal(t, want.String(), got.ToBig().String())
	}

	got, err := MulDivRoundingUp(new(uint256.Int), max, uint256.NewInt(5))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestGetAmountDeltas(t *testing.T) {
	p1 := encode(t, 1, 1)
	p121 := encode(t, 121, 100)
	liquidity := eth(1)

	up, err := GetAmount0Delta(p1, p121, liquidity, true)
	require.NoError(t, err)
	assert.Equal(t, "90909090909090910", up.ToBig().String())

	down, err := GetAmount0Delta(p121, p1, liquidity, false)
	require.NoError(t, err)
	assert.Equal(t, "90909090909090909", down.ToBig().String())

	up, err = GetAmount1Delta(p1, p121, liquidity, true)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", up.ToBig().String())

	down, err = GetAmount1Delta(p1, p121, liquidity, false)
	require.NoError(t, err)
	assert.Equal(t, "99999999999999999", down.ToBig().String())

	zero, err := GetAmount0Delta(p1, p1, liquidity, true)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = GetAmount0Delta(new(uint256.Int), p1, liquidity, true)
	assert.ErrorIs(t, err, ErrZeroPrice)

	_, err = GetAmount1Delta(p1, p121, new(uint256.Int).Lsh(uint256.NewInt(1), 128), true)
	assert.ErrorIs(t, err, ErrLiquidityOverflow)
}

func TestAmountsForLiquidityDelta(t *testing.T) {
	p1 := encode(t, 1, 1)
	liquidity := eth(1)

	cases := []struct {
		name         string
		lower, upper int32
		roundUp      bool
		want0, want1 string
	}{
		{"mint in range", -60, 60, true, "2995354955910781", "2995354955910781"},
		{"burn in range", -60, 60, false, "2995354955910780", "2995354955910780"},
		{"mint above price", 60, 120, true, "2986382804598882", "0"},
		{"mint below price", -120, -60, true, "0", "2986382804598882"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount0, amount1, err := AmountsForLiquidityDelta(0, p1, tc.lower, tc.upper, liquidity, tc.roundUp)
			require.NoError(t, err)
			assert.Equal(t, tc.want0, amount0.ToBig().String())
			assert.Equal(t, tc.want1, amount1.ToBig().String())
		})
	}

	_, _, err := AmountsForLiquidityDelta(0, p1, 60, -60, liquidity, true)
	assert.ErrorIs(t, err, tickmath.ErrTickOrder)
}

func TestLiquidityAmounts(t *testing.T) {
	sqrtA := encode(t, 100, 110)
	sqrtB := encode(t, 110, 100)
	amount0, amount1 := uint256.NewInt(100), uint256.NewInt(200)

	cases := []struct {
		name         string
		price        *uint256.Int
		liquidity    uint64
		want0, want1 uint64
	}{
		{"price inside", encode(t, 1, 1), 2148, 99, 99},
		{"price below", encode(t, 99, 110), 1048, 99, 0},
		{"price above", encode(t, 111, 100), 2097, 0, 199},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			liquidity, err := GetLiquidityForAmounts(tc.price, sqrtA, sqrtB, amount0, amount1)
			require.NoError(t, err)
			assert.Equal(t, tc.liquidity, liquidity.Uint64())

			got0, got1, err := GetAmountsForLiquidity(tc.price, sqrtB, sqrtA, liquidity)
			require.NoError(t, err)
			assert.Equal(t, tc.want0, got0.Uint64())
			assert.Equal(t, tc.want1, got1.Uint64())
		})
	}
}

func TestPrice(t *testing.T) {
	assert.True(t, Price(encode(t, 1, 1), 18, 18).Equal(decimal.NewFromInt(1)))

	four := encode(t, 4, 1)
	assert.True(t, Price(four, 18, 18).Equal(decimal.NewFromInt(4)))
	assert.True(t, Price(four, 18, 6).Equal(decimal.RequireFromString("4000000000000")))
	assert.True(t, Price(four, 6, 18).Equal(decimal.RequireFromString("0.000000000004")))

	price, err := TickPrice(0, 18, 18)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))

	_, err = TickPrice(tickmath.MaxTick+1, 18, 18)
	assert.ErrorIs(t, err, tickmath.ErrTickOutOfRange)
}
