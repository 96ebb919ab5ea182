package tickmath

import "errors"

var (
	// ErrTickOutOfRange is returned when a tick falls outside [MinTick, MaxTick].
	ErrTickOutOfRange = errors.New("tick out of range")
	// ErrRatioOutOfRange is returned when a sqrt price falls outside [MinSqrtRatio, MaxSqrtRatio).
	ErrRatioOutOfRange = errors.New("sqrt ratio out of range")

	ErrTickOrder        = errors.New("tick lower must be below tick upper")
	ErrTickLowerTooLow  = errors.New("tick lower below minimum")
	ErrTickUpperTooHigh = errors.New("tick upper above maximum")
	ErrTickSpacing      = errors.New("tick not a multiple of spacing")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrTickOutOfRange, "T"},
	{ErrRatioOutOfRange, "R"},
	{ErrTickOrder, "TLU"},
	{ErrTickLowerTooLow, "TLM"},
	{ErrTickUpperTooHigh, "TUM"},
	{ErrTickSpacing, "TS"},
}

// Code returns the short on-chain style diagnostic for err, or "" when err
// does not originate from this package.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
