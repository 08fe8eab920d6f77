package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/sandbox/pkg/cli/internal/output"
)

// DefaultAdminURL is used when neither --admin-url nor SANDBOX_ADMIN_URL
// is set.
const DefaultAdminURL = "http://localhost:4300"

var (
	// Persistent flags available to all subcommands
	adminURL   string
	apiKey     string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sandboxd",
	Short: "sandboxd turns OpenAPI specifications into running mock APIs",
	Long: `sandboxd imports OpenAPI specifications, builds Mockoon environments from
them and runs them as mock HTTP servers. Response data can be regenerated by a
hosted language model, and every call is recorded for analytics.

Run "sandboxd serve" to start the backend; the other commands talk to a
running server through its admin API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", envOr("SANDBOX_ADMIN_URL", DefaultAdminURL), "Admin API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("SANDBOX_API_KEY"), "Admin API key")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// client returns an AdminClient for the persistent flags.
func client() AdminClient {
	return NewAdminClient(adminURL, WithAPIKey(apiKey))
}

// printResult outputs a single operation result.
//
// When --json is active only the JSON encoding of data is written to
// stdout. textFn is called only in text mode.
func printResult(w io.Writer, data any, textFn func()) error {
	if jsonOutput {
		return output.JSON(w, data)
	}
	textFn()
	return nil
}
