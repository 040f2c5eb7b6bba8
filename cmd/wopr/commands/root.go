// Package commands provides the CLI commands for the wopr client.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var daemonAddr string
var queryFlag string

var rootCmd = &cobra.Command{
	Use:   "wopr",
	Short: "wopr - thin HTTP client for the WOPR daemon",
	Long: `wopr talks to a running woprd daemon over HTTP: create and inject
sessions, manage providers and schedules, and inspect the middleware and
context pipelines.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", defaultAddr(), "WOPR daemon base URL")
	rootCmd.PersistentFlags().StringVar(&queryFlag, "query", "", "gjson path expression to extract from the response instead of printing it whole")
	rootCmd.SetVersionTemplate(fmt.Sprintf("wopr %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(capabilitiesCmd)
}

func defaultAddr() string {
	if v := os.Getenv("WOPR_ADDR"); v != "" {
		return v
	}
	return "http://127.0.0.1:4173"
}

// Execute runs the root command. Its error is non-nil on parse/validation
// failure or daemon unreachability, matching the CLI's documented exit
// code contract: 0 success, non-zero otherwise.
func Execute() error {
	return rootCmd.Execute()
}
