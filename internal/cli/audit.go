package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/talentops/skillgate/internal/audit"
	"github.com/talentops/skillgate/internal/config"
)

var (
	auditDBPath string
	auditJSON   bool
	recentLimit int

	queryOperation string
	querySession   string
	queryClient    string
	querySince     string
	queryUntil     string
	queryErrors    bool
	queryLimit     int
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.PersistentFlags().StringVar(&auditDBPath, "db", "", "Path to the audit SQLite database (overrides AUDIT_DB_PATH)")
	auditCmd.PersistentFlags().BoolVar(&auditJSON, "json", false, "Output JSON instead of a table")

	auditCmd.AddCommand(auditRecentCmd)
	auditRecentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 0, "Number of recent calls to show (default 50)")

	auditCmd.AddCommand(auditQueryCmd)
	auditQueryCmd.Flags().StringVar(&queryOperation, "operation", "", "Filter by tool name")
	auditQueryCmd.Flags().StringVar(&querySession, "session", "", "Filter by session ID")
	auditQueryCmd.Flags().StringVar(&queryClient, "client", "", "Filter by client name")
	auditQueryCmd.Flags().StringVar(&querySince, "since", "", "Inclusive lower time bound (RFC 3339 or YYYY-MM-DD)")
	auditQueryCmd.Flags().StringVar(&queryUntil, "until", "", "Inclusive upper time bound (RFC 3339 or YYYY-MM-DD)")
	auditQueryCmd.Flags().BoolVar(&queryErrors, "errors-only", false, "Only show failed calls")
	auditQueryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Max rows to return (default 100, max 1000)")

	auditCmd.AddCommand(auditSummaryCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the tool call audit log",
	Long:  "Commands for querying the SQLite audit log of forwarded tool calls.",
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent tool calls",
	RunE:  runAuditRecent,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the audit log with filters",
	Long: "Filters combine with AND. Time bounds accept RFC 3339 timestamps\n" +
		"or YYYY-MM-DD dates and are inclusive.",
	RunE: runAuditQuery,
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregate statistics for the audit log",
	RunE:  runAuditSummary,
}

// openQuerier opens the audit store for read-side commands.
func openQuerier() (*audit.Querier, *audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	path := cfg.AuditDBPath
	if auditDBPath != "" {
		path = auditDBPath
	}
	store := audit.Open(path)
	return audit.NewQuerier(store), store, nil
}

func runAuditRecent(cmd *cobra.Command, args []string) error {
	querier, store, err := openQuerier()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := querier.Recent(context.Background(), recentLimit)
	if err != nil {
		return err
	}
	return printEvents(events)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	querier, store, err := openQuerier()
	if err != nil {
		return err
	}
	defer store.Close()

	params := audit.QueryParams{
		Operation:  queryOperation,
		SessionID:  querySession,
		ClientName: queryClient,
		Since:      querySince,
		Until:      queryUntil,
	}
	if queryErrors {
		params.ErrorsOnly = "true"
	}
	if queryLimit != 0 {
		params.Limit = strconv.Itoa(queryLimit)
	}

	events, err := querier.Query(context.Background(), params)
	if err != nil {
		return err
	}
	return printEvents(events)
}

func runAuditSummary(cmd *cobra.Command, args []string) error {
	querier, store, err := openQuerier()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := querier.Summary(context.Background())
	if err != nil {
		return err
	}

	if auditJSON {
		out, err := audit.FormatJSON(summary)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(audit.FormatSummary(summary))
	return nil
}

func printEvents(events []audit.Event) error {
	if auditJSON {
		out, err := audit.FormatJSON(events)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(audit.FormatEvents(events))
	return nil
}
