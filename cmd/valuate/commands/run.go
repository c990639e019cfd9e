package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"equity_valuation/pkg/core/pipeline"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [case-file | case-name]",
		Short: "Value a case and print the football-field report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := orch.Run(cmd.Context(), c)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	return cmd
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	fmt.Fprintf(w, "Case: %s", out.Case)
	if out.Currency != "" {
		fmt.Fprintf(w, " (%s)", out.Currency)
	}
	fmt.Fprintln(w)

	if out.CostOfCapital != nil {
		fmt.Fprintf(w, "Cost of equity %.2f%%  after-tax cost of debt %.2f%%  WACC %.2f%%\n",
			out.CostOfCapital.CostOfEquity*100, out.CostOfCapital.AfterTaxCostOfDebt*100, out.CostOfCapital.WACC*100)
	}

	fmt.Fprintln(w, "\nScenarios")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tWACC\tg\tPV FCF\tPV terminal\tEV\t")
	for _, s := range out.Scenarios {
		fmt.Fprintf(tw, "%s\t%.2f%%\t%.2f%%\t%.1f\t%.1f\t%.1f\t\n", s.Name,
			s.Assumptions.WACC*100, s.Assumptions.TerminalGrowth*100,
			s.Result.PVExplicitFCF, s.Result.PVTerminal, s.Result.EnterpriseValue)
	}
	tw.Flush()
	if !out.ScenariosMonotonic {
		fmt.Fprintln(w, "warning: scenario values are not ordered bear <= base <= bull")
	}

	fmt.Fprintln(w, "\nFootball field")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tMin\tMax\t")
	for _, r := range out.Report.Ranges {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t\n", r.Label, r.Min, r.Max)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nBase enterprise value: %.1f\n", out.Report.BaseEnterpriseValue)
	fmt.Fprintf(w, "Implied share price:   %.2f\n", out.Report.ImpliedSharePrice)
	if out.ImpliedRevenueMultiple != nil {
		fmt.Fprintf(w, "Implied EV/Revenue:    %.2fx\n", *out.ImpliedRevenueMultiple)
	}
	if out.Sensitivity != nil {
		fmt.Fprintln(w)
		printSnapshot(w, out.Sensitivity)
	}
}
