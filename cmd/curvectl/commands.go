package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/volumefi/curve-engine/internal/engine"
	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/precision"
	"github.com/volumefi/curve-engine/internal/token"
)

type globalFlags struct {
	decimals int32
	digits   int32
	asJSON   bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "curvectl",
		Short:         "Bonding-curve calibration and pricing tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int32Var(&g.decimals, "decimals", model.DefaultDecimals, "decimals of token and reserve amounts")
	root.PersistentFlags().Int32Var(&g.digits, "precision", precision.DefaultDigits, "working precision in significant digits")
	root.PersistentFlags().BoolVar(&g.asJSON, "json", false, "print raw smallest-unit JSON")

	root.AddCommand(calibrateCmd(g), quoteCmd(g), priceCmd(g))
	return root
}

func (g *globalFlags) engine() (*engine.Engine, error) {
	prec, err := precision.New(g.digits)
	if err != nil {
		return nil, err
	}
	return engine.New(prec), nil
}

// units parses a whole-unit flag value; empty means zero.
func (g *globalFlags) units(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := token.ParseUnits(raw, g.decimals)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

func calibrateCmd(g *globalFlags) *cobra.Command {
	var target, deposit, virtualSupply, virtualReserve string
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Derive the connector weight that returns --target tokens for --deposit reserve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := g.engine()
			if err != nil {
				return err
			}
			t, err := g.units("target", target)
			if err != nil {
				return err
			}
			d, err := g.units("deposit", deposit)
			if err != nil {
				return err
			}
			anchors := model.DefaultAnchors(t, d)
			// Virtual anchors are protocol constants in smallest units.
			if virtualSupply != "" {
				if anchors.VirtualSupply, err = decimal.NewFromString(virtualSupply); err != nil {
					return fmt.Errorf("--virtual-supply: %w", err)
				}
			}
			if virtualReserve != "" {
				if anchors.VirtualReserve, err = decimal.NewFromString(virtualReserve); err != nil {
					return fmt.Errorf("--virtual-reserve: %w", err)
				}
			}

			ppm, err := eng.Calibrate(anchors)
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"weight_ppm": ppm, "anchors": anchors})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "weight_ppm: %d\n", ppm)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "tokens returned for the deposit, whole units")
	cmd.Flags().StringVar(&deposit, "deposit", "", "reserve deposited, whole units")
	cmd.Flags().StringVar(&virtualSupply, "virtual-supply", "", "override S0, smallest units")
	cmd.Flags().StringVar(&virtualReserve, "virtual-reserve", "", "override C0, smallest units")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("deposit")
	return cmd
}

type curveFlags struct {
	supply, reserve string
	weight, feeBPS  uint32
}

func (f *curveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.supply, "supply", "", "current token supply, whole units (default S0)")
	cmd.Flags().StringVar(&f.reserve, "reserve", "", "current reserve balance, whole units (default C0)")
	cmd.Flags().Uint32Var(&f.weight, "weight", 0, "connector weight in ppm")
	cmd.Flags().Uint32Var(&f.feeBPS, "fee-bps", 0, "trading fee in basis points")
	cmd.MarkFlagRequired("weight")
}

func (f *curveFlags) state(g *globalFlags) (model.CurveState, error) {
	supply, err := g.units("supply", f.supply)
	if err != nil {
		return model.CurveState{}, err
	}
	reserve, err := g.units("reserve", f.reserve)
	if err != nil {
		return model.CurveState{}, err
	}
	if f.supply == "" && f.reserve == "" {
		supply, reserve = model.DefaultVirtualSupply, model.DefaultVirtualReserve
	}
	st := model.CurveState{TotalSupply: supply, ReserveBalance: reserve, ConnectorWeightPPM: f.weight}
	return st, st.Validate()
}

func quoteCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a buy or sell against a curve snapshot",
	}
	cmd.AddCommand(quoteSideCmd(g, model.SideBuy), quoteSideCmd(g, model.SideSell))
	return cmd
}

func quoteSideCmd(g *globalFlags, side string) *cobra.Command {
	var cf curveFlags
	var tokens, amount string
	use, short := "buy", "Quote minting tokens (--tokens) or spending reserve (--amount)"
	if side == model.SideSell {
		use, short = "sell", "Quote burning tokens (--tokens) or receiving reserve (--amount)"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (tokens == "") == (amount == "") {
				return fmt.Errorf("exactly one of --tokens or --amount is required")
			}
			eng, err := g.engine()
			if err != nil {
				return err
			}
			st, err := cf.state(g)
			if err != nil {
				return err
			}
			fc := model.FeeConfig{FeeBasisPoints: cf.feeBPS}

			var q engine.Quote
			switch {
			case tokens != "":
				v, err := g.units("tokens", tokens)
				if err != nil {
					return err
				}
				if side == model.SideBuy {
					q, err = eng.QuoteBuyByTokens(st, v, fc)
				} else {
					q, err = eng.QuoteSellByTokens(st, v, fc)
				}
				if err != nil {
					return err
				}
			default:
				v, err := g.units("amount", amount)
				if err != nil {
					return err
				}
				if side == model.SideBuy {
					q, err = eng.QuoteBuyByReserve(st, v, fc)
				} else {
					q, err = eng.QuoteSellByReserve(st, v, fc)
				}
				if err != nil {
					return err
				}
			}
			return g.printQuote(cmd.OutOrStdout(), q)
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&tokens, "tokens", "", "token amount, whole units")
	cmd.Flags().StringVar(&amount, "amount", "", "reserve amount, whole units")
	return cmd
}

func priceCmd(g *globalFlags) *cobra.Command {
	var cf curveFlags
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Print the marginal price of a curve snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := g.engine()
			if err != nil {
				return err
			}
			st, err := cf.state(g)
			if err != nil {
				return err
			}
			spot, err := eng.SpotPrice(st)
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"spot_price": spot, "state": st})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spot_price: %s\n", spot)
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}

func (g *globalFlags) printQuote(w io.Writer, q engine.Quote) error {
	if g.asJSON {
		return writeJSON(w, q)
	}
	fmt.Fprintf(w, "side:          %s\n", q.Side)
	fmt.Fprintf(w, "tokens:        %s\n", token.FormatUnits(q.Tokens, g.decimals))
	fmt.Fprintf(w, "reserve:       %s\n", token.FormatUnits(q.Reserve, g.decimals))
	fmt.Fprintf(w, "curve_reserve: %s\n", token.FormatUnits(q.CurveReserve, g.decimals))
	fmt.Fprintf(w, "fee:           %s\n", token.FormatUnits(q.Fee, g.decimals))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
