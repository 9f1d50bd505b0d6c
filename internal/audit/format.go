package audit

import (
	"encoding/json"
	"fmt"
	"strings"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatEvents renders events as a human-readable text table,
// most recent first.
func FormatEvents(events []Event) string {
	if len(events) == 0 {
		return "No events recorded.\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-6s %-23s %-28s %-8s %9s  %s\n",
		"ID", "TIMESTAMP", "OPERATION", "STATUS", "MS", "CLIENT"))
	b.WriteString(separator + "\n")

	for _, e := range events {
		client := e.ClientName
		if client == "" {
			client = "-"
		}
		line := fmt.Sprintf("%-6d %-23s %-28s %-8s %9.1f  %s\n",
			e.ID,
			e.Timestamp.UTC().Format("2006-01-02 15:04:05.000"),
			truncate(e.Operation, 28),
			e.Status,
			e.DurationMS,
			truncate(client, 20))
		b.WriteString(line)
		if e.Status == StatusError && e.ErrorDetail != "" {
			b.WriteString(fmt.Sprintf("       └─ %s\n", truncate(e.ErrorDetail, 70)))
		}
	}

	b.WriteString(separator + "\n")
	b.WriteString(fmt.Sprintf("%d event(s)\n", len(events)))
	return b.String()
}

// FormatSummary renders an aggregate summary as human-readable text.
func FormatSummary(s Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Total calls:     %d\n", s.TotalCalls))
	if s.TotalCalls == 0 {
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Operations:      %d\n", s.UniqueOps))
	b.WriteString(fmt.Sprintf("Clients:         %d\n", s.UniqueClients))
	b.WriteString(fmt.Sprintf("Sessions:        %d\n", s.UniqueSessions))
	b.WriteString(fmt.Sprintf("Errors:          %d (rate %.3f)\n", s.ErrorCount, s.ErrorRate))
	b.WriteString(fmt.Sprintf("Avg duration:    %.1f ms\n", s.AvgDurationMS))
	b.WriteString(fmt.Sprintf("Max duration:    %.1f ms\n", s.MaxDurationMS))
	b.WriteString(fmt.Sprintf("First call:      %s\n", s.FirstCall))
	b.WriteString(fmt.Sprintf("Last call:       %s\n", s.LastCall))

	if len(s.Operations) > 0 {
		b.WriteString(separator + "\n")
		b.WriteString(fmt.Sprintf("%-28s %8s %7s %7s %9s %9s\n",
			"OPERATION", "CALLS", "ERRORS", "RATE", "AVG MS", "MAX MS"))
		for _, op := range s.Operations {
			b.WriteString(fmt.Sprintf("%-28s %8d %7d %7.3f %9.1f %9.1f\n",
				truncate(op.Operation, 28), op.Calls, op.Errors, op.ErrorRate,
				op.AvgDurationMS, op.MaxDurationMS))
		}
	}

	return b.String()
}

// FormatJSON renders any result as indented JSON.
func FormatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
