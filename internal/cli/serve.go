package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talentops/skillgate/internal/audit"
	"github.com/talentops/skillgate/internal/config"
	"github.com/talentops/skillgate/internal/gateway"
	skillmcp "github.com/talentops/skillgate/internal/mcp"
	"github.com/talentops/skillgate/internal/server"
)

var (
	serveDBPath    string
	servePolicy    string
	serveAddr      string
	serveUpstream  string
	serveResources string
	serveNoHTTP    bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "Path to the audit SQLite database (overrides AUDIT_DB_PATH)")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to the audit policy YAML (overrides AUDIT_POLICY_PATH)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP query API listen address (overrides HOST/PORT)")
	serveCmd.Flags().StringVar(&serveUpstream, "upstream", "", "TM Skills API base URL (overrides TM_API_BASE_URL)")
	serveCmd.Flags().StringVar(&serveResources, "resources", "", "Directory with MCP resource files (overrides RESOURCES_DIR)")
	serveCmd.Flags().BoolVar(&serveNoHTTP, "no-http", false, "Disable the HTTP query API")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audited MCP gateway",
	Long: "Runs the TM Skills gateway as an MCP server over stdio and serves the\n" +
		"audit query API over HTTP. The audit policy file hot-reloads on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveDBPath != "" {
		cfg.AuditDBPath = serveDBPath
	}
	if servePolicy != "" {
		cfg.AuditPolicyPath = servePolicy
	}
	if serveUpstream != "" {
		cfg.APIBaseURL = serveUpstream
	}
	if serveResources != "" {
		cfg.ResourcesDir = serveResources
	}

	// stdout carries the MCP protocol; everything else goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	policy, err := audit.LoadPolicy(cfg.AuditPolicyPath)
	if err != nil {
		return fmt.Errorf("load audit policy: %w", err)
	}

	store := audit.Open(cfg.AuditDBPath)
	defer store.Close()

	recorder := audit.NewRecorder(store, policy, logger)
	querier := audit.NewQuerier(store)

	upstream := gateway.New(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.APITimeout,
	})

	mcpServer, err := skillmcp.New(skillmcp.Config{
		Upstream:     upstream,
		Recorder:     recorder,
		Querier:      querier,
		ResourcesDir: cfg.ResourcesDir,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gateway...")
		cancel()
	}()

	reloader, err := server.NewReloader(recorder, cfg.AuditPolicyPath, logger)
	if err != nil {
		logger.Warn("policy hot-reload disabled", "error", err)
	} else {
		go reloader.Run(ctx)
	}

	if !serveNoHTTP {
		addr := cfg.ListenAddr()
		if serveAddr != "" {
			addr = serveAddr
		}
		api := server.New(server.Config{
			Addr:        addr,
			CORSOrigins: cfg.CORSOrigins,
		}, querier, logger)
		go func() {
			if err := api.Start(ctx); err != nil {
				logger.Error("http api failed", "error", err)
				cancel()
			}
		}()
	}

	logger.Info("mcp server running on stdio",
		"upstream", cfg.APIBaseURL,
		"audit_db", cfg.AuditDBPath)
	return mcpServer.Run(ctx)
}
