package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentops/skillgate/internal/audit"
	"github.com/talentops/skillgate/internal/config"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check gateway readiness and diagnose configuration issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// 1. Binary location and version.
	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{
			label:  "skillgate binary",
			ok:     true,
			detail: fmt.Sprintf("%s (v%s)", execPath, version),
		})
	} else {
		checks = append(checks, checkResult{
			label:  "skillgate binary",
			ok:     false,
			detail: "cannot determine executable path",
		})
	}

	// 2. Environment configuration.
	cfg, cfgErr := config.Load()
	if cfgErr == nil {
		checks = append(checks, checkResult{
			label:  "configuration",
			ok:     true,
			detail: fmt.Sprintf("upstream %s", cfg.APIBaseURL),
		})
	} else {
		checks = append(checks, checkResult{
			label:  "configuration",
			ok:     false,
			detail: cfgErr.Error(),
			fix:    "fix the environment variables named above",
		})
	}

	// 3. Upstream API reachability. Any HTTP status counts as reachable;
	// only transport failures are reported.
	if cfg != nil {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(cfg.APIBaseURL)
		if err == nil {
			resp.Body.Close()
			checks = append(checks, checkResult{
				label:  "upstream API",
				ok:     true,
				detail: fmt.Sprintf("reachable (%s)", resp.Status),
			})
		} else {
			checks = append(checks, checkResult{
				label:  "upstream API",
				ok:     false,
				detail: "unreachable",
				fix:    "check TM_API_BASE_URL and that the API is running",
			})
		}
	}

	// 4. Audit database writability.
	if cfg != nil {
		path := cfg.AuditDBPath
		store := audit.Open(path)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := store.EnsureReady(ctx)
		cancel()
		store.Close()
		if err == nil {
			checks = append(checks, checkResult{
				label:  "audit database",
				ok:     true,
				detail: path,
			})
		} else {
			checks = append(checks, checkResult{
				label:  "audit database",
				ok:     false,
				detail: err.Error(),
				fix:    "check AUDIT_DB_PATH and directory permissions",
			})
		}
	}

	// 5. Recording policy.
	if cfg != nil {
		if cfg.AuditPolicyPath == "" {
			checks = append(checks, checkResult{
				label:  "audit policy",
				ok:     true,
				detail: "not set, defaults apply",
			})
		} else if policy, err := audit.LoadPolicy(cfg.AuditPolicyPath); err == nil {
			checks = append(checks, checkResult{
				label:  "audit policy",
				ok:     true,
				detail: fmt.Sprintf("%s (%d skip patterns)", cfg.AuditPolicyPath, len(policy.Skip)),
			})
		} else {
			checks = append(checks, checkResult{
				label:  "audit policy",
				ok:     false,
				detail: err.Error(),
				fix:    fmt.Sprintf("fix the YAML in %s", cfg.AuditPolicyPath),
			})
		}
	}

	// 6. MCP resource files.
	if cfg != nil {
		if info, err := os.Stat(cfg.ResourcesDir); err == nil && info.IsDir() {
			var missing []string
			for _, name := range []string{"tm_schema.sql", "business_questions.md"} {
				if _, err := os.Stat(filepath.Join(cfg.ResourcesDir, name)); err != nil {
					missing = append(missing, name)
				}
			}
			if len(missing) == 0 {
				checks = append(checks, checkResult{
					label:  "resource files",
					ok:     true,
					detail: cfg.ResourcesDir,
				})
			} else {
				checks = append(checks, checkResult{
					label:  "resource files",
					ok:     false,
					detail: fmt.Sprintf("missing %s", strings.Join(missing, ", ")),
					fix:    fmt.Sprintf("restore the files under %s", cfg.ResourcesDir),
				})
			}
		} else {
			checks = append(checks, checkResult{
				label:  "resource files",
				ok:     false,
				detail: fmt.Sprintf("directory %s missing", cfg.ResourcesDir),
				fix:    "set RESOURCES_DIR or create ./resources",
			})
		}
	}

	// Print results.
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested fixes.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}
