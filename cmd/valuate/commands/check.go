package commands

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/sensitivity"
	"equity_valuation/pkg/core/valuation"
)

// referenceBase is the base case whose enterprise value is known to be
// 9639.531089493972 under flat decay.
var referenceBase = assumption.Assumptions{
	CurrentRevenue:         1200,
	YearOneGrowth:          0.30,
	GrowthDecayFactor:      0.9,
	InitialFCFMargin:       0.15,
	MarginExpansionPerYear: 0.02,
	TerminalGrowth:         0.03,
	WACC:                   0.105,
	HorizonYears:           5,
}

const referenceEV = 9639.531089493972

type engineCheck struct {
	name string
	run  func(ctx context.Context) error
}

func engineChecks() []engineCheck {
	p := valuation.NewPipeline()

	return []engineCheck{
		{"terminal value closed form", func(context.Context) error {
			tv, err := valuation.TerminalValue(100, 0.03, 0.105)
			if err != nil {
				return err
			}
			if want := 100 * 1.03 / 0.075; math.Abs(tv-want) > 1e-9 {
				return fmt.Errorf("got %.6f, want %.6f", tv, want)
			}
			return nil
		}},
		{"wacc equal to terminal growth is rejected", func(context.Context) error {
			_, err := valuation.TerminalValue(100, 0.05, 0.05)
			if !errors.Is(err, assumption.ErrInvalidAssumption) {
				return fmt.Errorf("got %v, want ErrInvalidAssumption", err)
			}
			return nil
		}},
		{"reference enterprise value", func(context.Context) error {
			res, err := p.Run(referenceBase)
			if err != nil {
				return err
			}
			if math.Abs(res.EnterpriseValue-referenceEV) > 1e-6 {
				return fmt.Errorf("got %.6f, want %.6f", res.EnterpriseValue, referenceEV)
			}
			return nil
		}},
		{"enterprise value falls as wacc rises", func(context.Context) error {
			prev := math.Inf(1)
			for _, w := range []float64{0.085, 0.095, 0.105, 0.115, 0.125} {
				res, err := p.Run(referenceBase.WithRates(w, referenceBase.TerminalGrowth))
				if err != nil {
					return err
				}
				if res.EnterpriseValue >= prev {
					return fmt.Errorf("EV at wacc %s did not fall", sensitivity.FormatRate(w))
				}
				prev = res.EnterpriseValue
			}
			return nil
		}},
		{"scenarios ordered bear <= base <= bull", func(context.Context) error {
			bear, bull := referenceBase, referenceBase
			bear.YearOneGrowth, bear.TerminalGrowth = 0.15, 0.02
			bull.YearOneGrowth, bull.TerminalGrowth = 0.45, 0.04
			set, err := p.RunScenarios(assumption.Presets{
				assumption.Bear: bear,
				assumption.Base: referenceBase,
				assumption.Bull: bull,
			})
			if err != nil {
				return err
			}
			if !set.Monotonic() {
				return errors.New("scenario values out of order")
			}
			return nil
		}},
		{"serial and parallel grids agree", func(ctx context.Context) error {
			waccs := sensitivity.Linspace(0.02, 0.125, 8)
			growths := sensitivity.Linspace(0.0, 0.04, 8)
			serial, err := sensitivity.NewBuilder(p, sensitivity.WithWorkers(1)).Build(ctx, waccs, growths, referenceBase)
			if err != nil {
				return err
			}
			parallel, err := sensitivity.NewBuilder(p, sensitivity.WithWorkers(8)).Build(ctx, waccs, growths, referenceBase)
			if err != nil {
				return err
			}
			for r := 0; r < serial.Rows(); r++ {
				for c := 0; c < serial.Cols(); c++ {
					a, b := serial.At(r, c), parallel.At(r, c)
					if a.Result != b.Result || a.Valid() != b.Valid() {
						return fmt.Errorf("cell (%d, %d) differs", r, c)
					}
				}
			}
			if len(serial.InvalidCells()) == 0 {
				return errors.New("expected invalid cells where wacc <= g")
			}
			return nil
		}},
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the engine against the reference case and its properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, c := range engineChecks() {
				if err := c.run(cmd.Context()); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %v\n", c.name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "PASS  %s\n", c.name)
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	return cmd
}
