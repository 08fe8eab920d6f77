package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/getmockd/sandbox/pkg/cli/internal/output"
)

var analyticsEnv string

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize calls recorded by running environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := client().AnalyticsSummary(cmd.Context(), analyticsEnv)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, sum, func() {
			if sum.Total == 0 {
				fmt.Fprintln(w, "No calls recorded")
				return
			}
			fmt.Fprintf(w, "Calls:      %d\n", sum.Total)
			fmt.Fprintf(w, "Errors:     %d (%.1f%%)\n", sum.Errors, sum.ErrorRate*100)
			fmt.Fprintf(w, "Latency:    avg %.1fms  p50 %.1fms  p95 %.1fms  max %.1fms\n",
				sum.AvgMs, sum.P50Ms, sum.P95Ms, sum.MaxMs)
			for _, class := range slices.Sorted(maps.Keys(sum.ByStatusClass)) {
				fmt.Fprintf(w, "  %s: %d\n", class, sum.ByStatusClass[class])
			}
			if len(sum.TopEndpoints) == 0 {
				return
			}
			fmt.Fprintln(w)
			tw := output.Table(w)
			fmt.Fprintln(tw, "METHOD\tROUTE\tCALLS\tERRORS\tAVG")
			for _, e := range sum.TopEndpoints {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1fms\n", e.Method, e.Route, e.Count, e.Errors, e.AvgMs)
			}
			_ = tw.Flush()
		})
	},
}

func init() {
	analyticsCmd.Flags().StringVarP(&analyticsEnv, "env", "e", "", "Only calls of this environment")
	rootCmd.AddCommand(analyticsCmd)
}
