package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skillgate",
	Short: "Audited MCP gateway for the Talent Management Skills API",
	Long: "Exposes the TM Skills API as MCP tools, resources, and prompts.\n" +
		"Every forwarded tool call lands in a SQLite audit log, queryable\n" +
		"over MCP, HTTP, and this CLI.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
