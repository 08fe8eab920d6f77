package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/sandbox/pkg/cli/internal/output"
	"github.com/getmockd/sandbox/pkg/mockoon"
)

var envCmd = &cobra.Command{
	Use:     "env",
	Aliases: []string{"environments"},
	Short:   "Manage Mockoon environments",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := client().ListEnvironments(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, list, func() {
			if len(list) == 0 {
				fmt.Fprintln(w, "No environments")
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "ID\tNAME\tPORT\tSTATUS\tROUTES\tSPEC")
			for _, e := range list {
				status := string(e.Status)
				if e.Error != "" {
					status += " (" + e.Error + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n", e.ID, e.Name, e.Port, status, e.Routes, e.SpecID)
			}
			_ = tw.Flush()
		})
	},
}

var envCreate mockoon.CreateRequest

var envCreateCmd = &cobra.Command{
	Use:   "create <spec-id>",
	Short: "Create an environment from a specification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := envCreate
		req.SpecID = args[0]
		rec, err := client().CreateEnvironment(cmd.Context(), req)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return printResult(w, rec, func() {
			fmt.Fprintf(w, "Created environment %s %q on port %d (%s)\n", rec.ID, rec.Name, rec.Port, rec.Status)
			if rec.Error != "" {
				output.Warn(cmd.ErrOrStderr(), "environment failed to start: %s", rec.Error)
			}
		})
	},
}

// lifecycleCmd builds the start, stop and restart commands.
func lifecycleCmd(use, short, verb string, call func(AdminClient, context.Context, string) (*mockoon.Record, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := call(client(), cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return printResult(w, rec, func() {
				printLifecycle(w, verb, rec)
			})
		},
	}
}

func printLifecycle(w io.Writer, verb string, rec *mockoon.Record) {
	fmt.Fprintf(w, "%s environment %s on port %d (%s)\n", verb, rec.ID, rec.Port, rec.Status)
}

func init() {
	envCreateCmd.Flags().StringVarP(&envCreate.Name, "name", "n", "", "Environment name (default: specification name)")
	envCreateCmd.Flags().IntVarP(&envCreate.Port, "port", "p", 0, "Port to serve on (default: first free port in range)")
	envCreateCmd.Flags().BoolVar(&envCreate.Start, "start", false, "Start the environment after creating it")

	envCmd.AddCommand(
		envListCmd,
		envCreateCmd,
		lifecycleCmd("start", "Start an environment", "Started", AdminClient.StartEnvironment),
		lifecycleCmd("stop", "Stop an environment", "Stopped", AdminClient.StopEnvironment),
		lifecycleCmd("restart", "Restart an environment", "Restarted", AdminClient.RestartEnvironment),
	)
	rootCmd.AddCommand(envCmd)
}
