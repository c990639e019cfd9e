package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/sensitivity"
)

func sensitivityCmd() *cobra.Command {
	var (
		scenario             string
		waccFrom, waccTo     float64
		growthFrom, growthTo float64
		steps                int
	)

	cmd := &cobra.Command{
		Use:   "sensitivity [case-file | case-name]",
		Short: "Print the WACC × terminal growth enterprise value grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if f := cmd.Flags(); anyChanged(f, sweepFlags...) {
				// Start from the case's own sweep and override only what was passed.
				spec := pipeline.SweepSpec{
					Scenario:       assumption.Base,
					WACC:           pipeline.AxisSpec{From: waccFrom, To: waccTo, Steps: steps},
					TerminalGrowth: pipeline.AxisSpec{From: growthFrom, To: growthTo, Steps: steps},
				}
				if c.Sensitivity != nil {
					spec = *c.Sensitivity
				}
				if f.Changed("scenario") {
					name, err := assumption.ParseScenarioName(scenario)
					if err != nil {
						return err
					}
					spec.Scenario = name
				}
				overrideAxis(f, &spec.WACC, "wacc", waccFrom, waccTo, steps)
				overrideAxis(f, &spec.TerminalGrowth, "growth", growthFrom, growthTo, steps)
				c.Sensitivity = &spec
			}

			m, err := orch.Sensitivity(cmd.Context(), c)
			if err != nil {
				return err
			}
			snap := m.Snapshot()

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSnapshot(cmd.OutOrStdout(), &snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", string(assumption.Base), "scenario the grid is centred on")
	cmd.Flags().Float64Var(&waccFrom, "wacc-from", 0.085, "lowest WACC")
	cmd.Flags().Float64Var(&waccTo, "wacc-to", 0.125, "highest WACC")
	cmd.Flags().Float64Var(&growthFrom, "growth-from", 0.02, "lowest terminal growth")
	cmd.Flags().Float64Var(&growthTo, "growth-to", 0.04, "highest terminal growth")
	cmd.Flags().IntVar(&steps, "steps", 5, "points per axis")
	return cmd
}

var sweepFlags = []string{"scenario", "wacc-from", "wacc-to", "growth-from", "growth-to", "steps"}

func anyChanged(f *pflag.FlagSet, names ...string) bool {
	for _, n := range names {
		if f.Changed(n) {
			return true
		}
	}
	return false
}

// overrideAxis applies the <prefix>-from, <prefix>-to and steps flags that
// were set. Explicit axis values from the case are dropped once any of them
// is, since a range cannot be applied on top of a value list.
func overrideAxis(f *pflag.FlagSet, axis *pipeline.AxisSpec, prefix string, from, to float64, steps int) {
	fromSet, toSet, stepsSet := f.Changed(prefix+"-from"), f.Changed(prefix+"-to"), f.Changed("steps")
	if !fromSet && !toSet && !stepsSet {
		return
	}
	if len(axis.Values) > 0 {
		vals := axis.Values
		*axis = pipeline.AxisSpec{From: vals[0], To: vals[len(vals)-1], Steps: len(vals)}
	}
	if fromSet {
		axis.From = from
	}
	if toSet {
		axis.To = to
	}
	if stepsSet {
		axis.Steps = steps
	}
}

func printSnapshot(w io.Writer, s *sensitivity.Snapshot) {
	fmt.Fprintf(w, "Enterprise value (÷%g), rows WACC, columns terminal growth\n", s.Scale)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\t")
	for _, l := range s.ColLabels {
		fmt.Fprintf(tw, "%s\t", l)
	}
	fmt.Fprintln(tw)
	for r, row := range s.Values {
		fmt.Fprintf(tw, "%s\t", s.RowLabels[r])
		for _, v := range row {
			if v == nil {
				fmt.Fprint(tw, "n/a\t")
				continue
			}
			fmt.Fprintf(tw, "%.2f\t", *v)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()

	for _, ic := range s.Invalid {
		fmt.Fprintf(w, "  %s / %s: %s\n", sensitivity.FormatRate(ic.WACC), sensitivity.FormatRate(ic.TerminalGrowth), ic.Reason)
	}
}
