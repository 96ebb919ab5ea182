package model

import (
	"fmt"
	"math/big"

	"tickscope/internal/tickmath"
)

// TokenMeta is what an ERC20 reports about itself. Symbol and name may be
// empty for tokens that do not implement them.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// PoolMeta holds the immutable pool fields plus optional state read at the
// block of the event.
type PoolMeta struct {
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// Spacing returns the pool tick spacing, falling back to the standard
// spacing of its fee tier. Zero means unknown.
func (m PoolMeta) Spacing() int32 {
	if m.TickSpacing > 0 {
		return m.TickSpacing
	}
	spacing, _ := tickmath.TickSpacingForFee(m.Fee)
	return spacing
}

// PoolSlot0 is the price part of slot0.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// Consistent reports whether the slot0 tick is the tick of its sqrt price.
func (s PoolSlot0) Consistent() (bool, error) {
	price, ok := new(big.Int).SetString(s.SqrtPriceX96, 10)
	if !ok {
		return false, fmt.Errorf("invalid sqrt price %q", s.SqrtPriceX96)
	}
	tick, err := tickmath.TickAtSqrtRatioBig(price)
	if err != nil {
		return false, err
	}
	return tick == s.Tick, nil
}
