package mcp

import (
	"context"
	"errors"
	"strconv"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/talentops/skillgate/internal/audit"
)

// AuditRecentInput selects how many recent calls to return.
type AuditRecentInput struct {
	Limit *float64 `json:"limit,omitempty" jsonschema:"number of recent calls to return (default 50)"`
}

// AuditQueryInput filters the audit log. Time bounds accept RFC 3339
// timestamps or YYYY-MM-DD dates.
type AuditQueryInput struct {
	Operation  string   `json:"operation,omitempty" jsonschema:"exact tool name to match"`
	SessionID  string   `json:"session_id,omitempty" jsonschema:"exact session ID to match"`
	ClientName string   `json:"client_name,omitempty" jsonschema:"exact client name to match"`
	Since      string   `json:"since,omitempty" jsonschema:"inclusive lower time bound (RFC 3339 or YYYY-MM-DD)"`
	Until      string   `json:"until,omitempty" jsonschema:"inclusive upper time bound (RFC 3339 or YYYY-MM-DD)"`
	ErrorsOnly bool     `json:"errors_only,omitempty" jsonschema:"only return failed calls"`
	Limit      *float64 `json:"limit,omitempty" jsonschema:"max rows to return (default 100, max 1000)"`
}

// AuditSummaryInput is empty: the summary always covers the whole log.
type AuditSummaryInput struct{}

// AuditEventsOutput carries matching audit events, newest first.
type AuditEventsOutput struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// AuditSummaryOutput carries aggregate statistics over the audit log.
type AuditSummaryOutput struct {
	Summary audit.Summary `json:"summary"`
}

// registerAuditTools adds the audit introspection tools. These read the
// log without being recorded in it.
func (s *Server) registerAuditTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "audit_recent",
		Description: "List the most recent audited tool calls, newest first.",
	}, s.handleAuditRecent)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "audit_query",
		Description: "Search the audit log with filters: tool name, session, client, time range, errors only.",
	}, s.handleAuditQuery)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "audit_summary",
		Description: "Aggregate statistics over the audit log: call counts, error rates, and latency per tool.",
	}, s.handleAuditSummary)
}

func (s *Server) handleAuditRecent(ctx context.Context, req *mcpsdk.CallToolRequest, in AuditRecentInput) (*mcpsdk.CallToolResult, AuditEventsOutput, error) {
	limit := 0
	if in.Limit != nil {
		limit = int(*in.Limit)
	}
	events, err := s.querier.Recent(ctx, limit)
	if err != nil {
		return nil, AuditEventsOutput{}, err
	}
	return nil, AuditEventsOutput{Events: events, Count: len(events)}, nil
}

func (s *Server) handleAuditQuery(ctx context.Context, req *mcpsdk.CallToolRequest, in AuditQueryInput) (*mcpsdk.CallToolResult, AuditEventsOutput, error) {
	params := audit.QueryParams{
		Operation:  in.Operation,
		SessionID:  in.SessionID,
		ClientName: in.ClientName,
		Since:      in.Since,
		Until:      in.Until,
	}
	if in.ErrorsOnly {
		params.ErrorsOnly = "true"
	}
	if in.Limit != nil {
		params.Limit = strconv.Itoa(int(*in.Limit))
	}

	events, err := s.querier.Query(ctx, params)
	if err != nil {
		var verr *audit.ValidationError
		if errors.As(err, &verr) {
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: verr.Error()}},
				IsError: true,
			}, AuditEventsOutput{}, nil
		}
		return nil, AuditEventsOutput{}, err
	}
	return nil, AuditEventsOutput{Events: events, Count: len(events)}, nil
}

func (s *Server) handleAuditSummary(ctx context.Context, req *mcpsdk.CallToolRequest, in AuditSummaryInput) (*mcpsdk.CallToolResult, AuditSummaryOutput, error) {
	summary, err := s.querier.Summary(ctx)
	if err != nil {
		return nil, AuditSummaryOutput{}, err
	}
	return nil, AuditSummaryOutput{Summary: summary}, nil
}
