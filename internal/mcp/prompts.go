package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts adds the reusable prompt templates.
func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcpsdk.Prompt{
		Name:        "find_experts",
		Description: "Guide the assistant to find experts for a given skill.",
		Arguments: []*mcpsdk.PromptArgument{
			{Name: "skill_name", Description: `the name of the skill to search for (e.g. "Python", "Project Management")`, Required: true},
		},
	}, s.handleFindExperts)

	s.mcpServer.AddPrompt(&mcpsdk.Prompt{
		Name:        "analyze_employee",
		Description: "Build a comprehensive talent profile for an employee.",
		Arguments: []*mcpsdk.PromptArgument{
			{Name: "employee_id", Description: "employee ID (e.g. EMP000001)", Required: true},
		},
	}, s.handleAnalyzeEmployee)

	s.mcpServer.AddPrompt(&mcpsdk.Prompt{
		Name:        "org_talent_review",
		Description: "Assess an organization's talent landscape.",
		Arguments: []*mcpsdk.PromptArgument{
			{Name: "org_unit_id", Description: "org unit ID (e.g. ORG030)", Required: true},
		},
	}, s.handleOrgTalentReview)
}

func (s *Server) handleFindExperts(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	skill, err := promptArg(req, "skill_name")
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("I need to find the top experts in %q in our organization.\n\n"+
		"Please:\n"+
		"1. Use browse_skills to find the skill ID for %q\n"+
		"2. Use get_top_experts with that skill ID to find the best people\n"+
		"3. For the top 3 experts, use get_skill_evidence to show what backs up their rating\n"+
		"4. Summarize the findings: who are the go-to people and why",
		skill, skill)
	return promptResult("Find experts for a skill", text), nil
}

func (s *Server) handleAnalyzeEmployee(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	employeeID, err := promptArg(req, "employee_id")
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Please build a comprehensive talent profile for employee %s.\n\n"+
		"Steps:\n"+
		"1. Use get_employee_skills to see their full skill profile\n"+
		"2. Use get_top_skills to identify their strongest areas\n"+
		"3. Use get_evidence_inventory to see all supporting evidence\n"+
		"4. For their top 3 skills, use get_cooccurring_skills to suggest related skills they might develop\n"+
		"5. Summarize: strengths, areas backed by strong evidence, and development suggestions",
		employeeID)
	return promptResult("Build a talent profile", text), nil
}

func (s *Server) handleOrgTalentReview(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	orgUnitID, err := promptArg(req, "org_unit_id")
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Please perform a talent review for org unit %s.\n\n"+
		"Steps:\n"+
		"1. Use get_org_skill_summary to see the top skills in this org\n"+
		"2. For the top 3 skills, use get_skill_coverage to understand the depth\n"+
		"3. For the top 3 skills, check get_stale_skills to find outdated records\n"+
		"4. Summarize: what this org is strong in, where the gaps might be, "+
		"and any governance concerns (stale skills needing revalidation)",
		orgUnitID)
	return promptResult("Review org talent", text), nil
}

func promptArg(req *mcpsdk.GetPromptRequest, name string) (string, error) {
	if req != nil && req.Params != nil {
		if v, ok := req.Params.Arguments[name]; ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("missing required argument %q", name)
}

func promptResult(description, text string) *mcpsdk.GetPromptResult {
	return &mcpsdk.GetPromptResult{
		Description: description,
		Messages: []*mcpsdk.PromptMessage{
			{Role: "user", Content: &mcpsdk.TextContent{Text: text}},
		},
	}
}
