package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nexushq/internal/commission"
)

func tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List subscription tiers and commission rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tNAME\tCOMMISSION\tMONTHLY FEE")
			for _, info := range commission.Tiers() {
				fmt.Fprintf(w, "%s\t%s\t%s%%\t%s\n", info.Tier, info.DisplayName, info.Tier.RatePercent(), info.MonthlyFee.StringFixed(2))
			}
			return w.Flush()
		},
	}
}
