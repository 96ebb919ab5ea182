package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tickscope/internal/config"
	"tickscope/internal/sqrtprice"
	"tickscope/internal/tickmath"
)

type conversion struct {
	Tick                int32  `json:"tick"`
	SqrtPriceX96        string `json:"sqrt_price_x96"`
	Price               string `json:"price"`
	NearestUsableTick   *int32 `json:"nearest_usable_tick,omitempty"`
	MaxLiquidityPerTick string `json:"max_liquidity_per_tick,omitempty"`
}

func addConvertFlags(flags *pflag.FlagSet) {
	flags.Int32("decimals0", 18, "token0 decimals used for the human price")
	flags.Int32("decimals1", 18, "token1 decimals used for the human price")
	flags.Int32("spacing", 0, "tick spacing, adds the nearest usable tick and per-tick liquidity cap")
}

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick <tick>",
		Short: "Print the sqrt price and price of a tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tick, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid tick %q: %w", args[0], err)
			}
			sqrtPriceX96, err := tickmath.GetSqrtRatioAtTick(int32(tick))
			if err != nil {
				return withCode(err)
			}
			return printConversion(cmd, int32(tick), sqrtPriceX96.ToBig())
		},
	}
	addConvertFlags(cmd.Flags())
	return cmd
}

func newSqrtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqrt <sqrtPriceX96>",
		Short: "Print the tick and price of a Q64.96 sqrt price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqrtPriceX96, ok := new(big.Int).SetString(args[0], 0)
			if !ok {
				return fmt.Errorf("invalid sqrt price %q", args[0])
			}
			tick, err := tickmath.TickAtSqrtRatioBig(sqrtPriceX96)
			if err != nil {
				return withCode(err)
			}
			return printConversion(cmd, tick, sqrtPriceX96)
		},
	}
	addConvertFlags(cmd.Flags())
	return cmd
}

func printConversion(cmd *cobra.Command, tick int32, sqrtPriceX96 *big.Int) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConvert(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	spacing, _ := cmd.Flags().GetInt32("spacing")

	// callers have range checked the value, so it fits in 160 bits
	price := sqrtprice.Price(uint256.MustFromBig(sqrtPriceX96), cfg.Decimals0, cfg.Decimals1)
	out := conversion{
		Tick:         tick,
		SqrtPriceX96: sqrtPriceX96.String(),
		Price:        price.String(),
	}
	if spacing > 0 {
		usable := tickmath.NearestUsableTick(tick, spacing)
		out.NearestUsableTick = &usable
		out.MaxLiquidityPerTick = tickmath.MaxLiquidityPerTick(spacing).ToBig().String()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func withCode(err error) error {
	if code := tickmath.Code(err); code != "" {
		return fmt.Errorf("%w (code %s)", err, code)
	}
	return err
}
