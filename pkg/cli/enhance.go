package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enhanceHint string

var enhanceCmd = &cobra.Command{
	Use:   "enhance <environment-id>",
	Short: "Regenerate an environment's response data with the AI enhancer",
	Long: `Asks the configured AI provider for realistic data matching each
response schema of the environment's specification, validates it and saves
it into the environment. Running environments are restarted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := client().EnhanceEnvironment(cmd.Context(), args[0], enhanceHint)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, out, func() {
			res := out.Result
			fmt.Fprintf(w, "Enhanced %s: %d updated, %d failed, %d skipped\n",
				args[0], res.Updated, res.Failed, res.Skipped)
			for _, msg := range res.Errors {
				fmt.Fprintf(w, "  %s\n", msg)
			}
		})
	},
}

func init() {
	enhanceCmd.Flags().StringVar(&enhanceHint, "hint", "", "Extra context for the generated data, e.g. \"Scandinavian customers\"")
	rootCmd.AddCommand(enhanceCmd)
}
