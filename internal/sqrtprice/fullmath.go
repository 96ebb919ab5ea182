// Package sqrtprice holds the fixed point helpers pools use to turn a
// liquidity change at a sqrt price into token amounts, and back.
package sqrtprice

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero    = errors.New("division by zero")
	ErrOverflow          = errors.New("result overflows uint256")
	ErrZeroPrice         = errors.New("sqrt price is zero")
	ErrLiquidityOverflow = errors.New("liquidity overflows uint128")
)

var (
	q96        = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	maxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
)

// MulDiv computes floor(a*b/denominator) with a 512 bit intermediate product.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	q, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return q, nil
}

// MulDivRoundingUp computes ceil(a*b/denominator) with a 512 bit intermediate product.
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	q, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		return q, nil
	}
	if q.Eq(new(uint256.Int).Not(new(uint256.Int))) {
		return nil, ErrOverflow
	}
	return q.AddUint64(q, 1), nil
}

func divRoundingUp(x, y *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(x, y)
	if !new(uint256.Int).Mod(x, y).IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
