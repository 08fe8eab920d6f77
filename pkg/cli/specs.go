package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/sandbox/pkg/cli/internal/output"
)

var specsCmd = &cobra.Command{
	Use:     "specs",
	Aliases: []string{"spec"},
	Short:   "Manage OpenAPI specifications",
}

var specsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported specifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := client().ListSpecs(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, list, func() {
			if len(list) == 0 {
				fmt.Fprintln(w, "No specifications imported")
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION\tOPENAPI\tENDPOINTS\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.Name, s.APIVersion, s.OpenAPIVersion, len(s.Endpoints), output.Ago(s.UpdatedAt))
			}
			_ = tw.Flush()
		})
	},
}

var specImportName string

var specsImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import an OpenAPI 3 or Swagger 2 document (JSON or YAML)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			content []byte
			err     error
		)
		if args[0] == "-" {
			content, err = io.ReadAll(cmd.InOrStdin())
		} else {
			content, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read specification: %w", err)
		}

		spec, err := client().ImportSpec(cmd.Context(), specImportName, content)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, spec, func() {
			fmt.Fprintf(w, "Imported %q as %s (%d endpoints)\n", spec.Name, spec.ID, len(spec.Endpoints))
		})
	},
}

var specsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a specification",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().DeleteSpec(cmd.Context(), args[0]); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, map[string]string{"deleted": args[0]}, func() {
			fmt.Fprintf(w, "Deleted specification %s\n", args[0])
		})
	},
}

func init() {
	specsImportCmd.Flags().StringVarP(&specImportName, "name", "n", "", "Name of the specification (default: document title)")
	specsCmd.AddCommand(specsListCmd, specsImportCmd, specsDeleteCmd)
	rootCmd.AddCommand(specsCmd)
}
