package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/talentops/skillgate/internal/audit"
	"github.com/talentops/skillgate/internal/identity"
)

// --- Input types ---
//
// Numeric IDs and limits arrive as floats because MCP clients send JSON
// numbers; they are truncated to integers before hitting the upstream API.
// Optional numerics are pointers so an explicit zero survives defaulting.

// EmployeeSkillsInput identifies the employee to profile.
type EmployeeSkillsInput struct {
	EmployeeID string `json:"employee_id" jsonschema:"employee ID in format EMP followed by 6 digits (e.g. EMP000001)"`
}

// SkillEvidenceInput identifies one employee skill rating.
type SkillEvidenceInput struct {
	EmployeeID string  `json:"employee_id" jsonschema:"employee ID (e.g. EMP000001)"`
	SkillID    float64 `json:"skill_id" jsonschema:"numeric skill ID (use browse_skills to find IDs by name)"`
}

// TopSkillsInput selects an employee's strongest skills.
type TopSkillsInput struct {
	EmployeeID string   `json:"employee_id" jsonschema:"employee ID (e.g. EMP000001)"`
	Limit      *float64 `json:"limit,omitempty" jsonschema:"number of top skills to return 1-50 (default 10)"`
}

// EvidenceInventoryInput identifies the employee to inventory.
type EvidenceInventoryInput struct {
	EmployeeID string `json:"employee_id" jsonschema:"employee ID (e.g. EMP000001)"`
}

// BrowseSkillsInput filters the skill catalog.
type BrowseSkillsInput struct {
	Category string `json:"category,omitempty" jsonschema:"filter by category (technical, functional, leadership, domain, tool, other)"`
	Search   string `json:"search,omitempty" jsonschema:"search skill name or description (case-insensitive, max 200 chars)"`
}

// TopExpertsInput selects experts for one skill.
type TopExpertsInput struct {
	SkillID        float64  `json:"skill_id" jsonschema:"numeric skill ID (use browse_skills to find IDs)"`
	MinProficiency *float64 `json:"min_proficiency,omitempty" jsonschema:"minimum proficiency level 0-5 (default 4)"`
	Limit          *float64 `json:"limit,omitempty" jsonschema:"max results to return 1-100 (default 20)"`
}

// SkillCoverageInput selects the skill to profile.
type SkillCoverageInput struct {
	SkillID        float64  `json:"skill_id" jsonschema:"numeric skill ID"`
	MinProficiency *float64 `json:"min_proficiency,omitempty" jsonschema:"threshold for the coverage count 0-5 (default 3)"`
}

// CandidatesInput selects evidence-backed candidates for one skill.
type CandidatesInput struct {
	SkillID             float64  `json:"skill_id" jsonschema:"numeric skill ID"`
	MinProficiency      *float64 `json:"min_proficiency,omitempty" jsonschema:"minimum proficiency level 0-5 (default 3)"`
	MinEvidenceStrength *float64 `json:"min_evidence_strength,omitempty" jsonschema:"minimum evidence signal strength 1-5 (default 4)"`
	Limit               *float64 `json:"limit,omitempty" jsonschema:"max candidates to return 1-100 (default 20)"`
}

// StaleSkillsInput selects skill records needing revalidation.
type StaleSkillsInput struct {
	SkillID       float64  `json:"skill_id" jsonschema:"numeric skill ID"`
	OlderThanDays *float64 `json:"older_than_days,omitempty" jsonschema:"skills not updated in this many days (default 365)"`
}

// CooccurringSkillsInput selects skill adjacency analysis parameters.
type CooccurringSkillsInput struct {
	SkillID        float64  `json:"skill_id" jsonschema:"numeric skill ID"`
	MinProficiency *float64 `json:"min_proficiency,omitempty" jsonschema:"minimum proficiency to consider 0-5 (default 3)"`
	Top            *float64 `json:"top,omitempty" jsonschema:"number of co-occurring skills to return 1-50 (default 20)"`
}

// SearchTalentInput is an AND search over multiple skills.
type SearchTalentInput struct {
	Skills         string   `json:"skills" jsonschema:"comma-separated skill names (e.g. Python,SQL,Docker), max 10 skills"`
	MinProficiency *float64 `json:"min_proficiency,omitempty" jsonschema:"minimum proficiency for each skill 0-5 (default 3)"`
}

// OrgSkillSummaryInput selects the org unit to summarize.
type OrgSkillSummaryInput struct {
	OrgUnitID string   `json:"org_unit_id" jsonschema:"org unit ID (e.g. ORG030, ORG031B)"`
	Limit     *float64 `json:"limit,omitempty" jsonschema:"number of top skills to return 1-100 (default 20)"`
}

// OrgSkillExpertsInput selects experts for a skill within an org unit.
type OrgSkillExpertsInput struct {
	OrgUnitID      string   `json:"org_unit_id" jsonschema:"org unit ID (e.g. ORG030, ORG031B)"`
	SkillID        float64  `json:"skill_id" jsonschema:"numeric skill ID"`
	MinProficiency *float64 `json:"min_proficiency,omitempty" jsonschema:"minimum proficiency level 0-5 (default 3)"`
	Limit          *float64 `json:"limit,omitempty" jsonschema:"max results 1-100 (default 20)"`
}

// --- Handlers ---

func (s *Server) handleGetEmployeeSkills(ctx context.Context, req *mcpsdk.CallToolRequest, in EmployeeSkillsInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/employees/%s/skills", url.PathEscape(in.EmployeeID))
	return s.forward(ctx, req, "get_employee_skills", in, path, nil)
}

func (s *Server) handleGetSkillEvidence(ctx context.Context, req *mcpsdk.CallToolRequest, in SkillEvidenceInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/employees/%s/skills/%d/evidence", url.PathEscape(in.EmployeeID), int(in.SkillID))
	return s.forward(ctx, req, "get_skill_evidence", in, path, nil)
}

func (s *Server) handleGetTopSkills(ctx context.Context, req *mcpsdk.CallToolRequest, in TopSkillsInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/employees/%s/top-skills", url.PathEscape(in.EmployeeID))
	query := url.Values{}
	query.Set("limit", intParam(in.Limit, 10))
	return s.forward(ctx, req, "get_top_skills", in, path, query)
}

func (s *Server) handleGetEvidenceInventory(ctx context.Context, req *mcpsdk.CallToolRequest, in EvidenceInventoryInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/employees/%s/evidence", url.PathEscape(in.EmployeeID))
	return s.forward(ctx, req, "get_evidence_inventory", in, path, nil)
}

func (s *Server) handleBrowseSkills(ctx context.Context, req *mcpsdk.CallToolRequest, in BrowseSkillsInput) (*mcpsdk.CallToolResult, any, error) {
	query := url.Values{}
	if in.Category != "" {
		query.Set("category", in.Category)
	}
	if in.Search != "" {
		query.Set("search", in.Search)
	}
	return s.forward(ctx, req, "browse_skills", in, "/tm/skills", query)
}

func (s *Server) handleGetTopExperts(ctx context.Context, req *mcpsdk.CallToolRequest, in TopExpertsInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/skills/%d/experts", int(in.SkillID))
	query := url.Values{}
	query.Set("min_proficiency", intParam(in.MinProficiency, 4))
	query.Set("limit", intParam(in.Limit, 20))
	return s.forward(ctx, req, "get_top_experts", in, path, query)
}

func (s *Server) handleGetSkillCoverage(ctx context.Context, req *mcpsdk.CallToolRequest, in SkillCoverageInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/skills/%d/coverage", int(in.SkillID))
	query := url.Values{}
	query.Set("min_proficiency", intParam(in.MinProficiency, 3))
	return s.forward(ctx, req, "get_skill_coverage", in, path, query)
}

func (s *Server) handleGetEvidenceBackedCandidates(ctx context.Context, req *mcpsdk.CallToolRequest, in CandidatesInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/skills/%d/candidates", int(in.SkillID))
	query := url.Values{}
	query.Set("min_proficiency", intParam(in.MinProficiency, 3))
	query.Set("min_evidence_strength", intParam(in.MinEvidenceStrength, 4))
	query.Set("limit", intParam(in.Limit, 20))
	return s.forward(ctx, req, "get_evidence_backed_candidates", in, path, query)
}

func (s *Server) handleGetStaleSkills(ctx context.Context, req *mcpsdk.CallToolRequest, in StaleSkillsInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/skills/%d/stale", int(in.SkillID))
	query := url.Values{}
	query.Set("older_than_days", intParam(in.OlderThanDays, 365))
	return s.forward(ctx, req, "get_stale_skills", in, path, query)
}

func (s *Server) handleGetCooccurringSkills(ctx context.Context, req *mcpsdk.CallToolRequest, in CooccurringSkillsInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/skills/%d/cooccurring", int(in.SkillID))
	query := url.Values{}
	query.Set("min_proficiency", intParam(in.MinProficiency, 3))
	query.Set("top", intParam(in.Top, 20))
	return s.forward(ctx, req, "get_cooccurring_skills", in, path, query)
}

func (s *Server) handleSearchTalent(ctx context.Context, req *mcpsdk.CallToolRequest, in SearchTalentInput) (*mcpsdk.CallToolResult, any, error) {
	query := url.Values{}
	query.Set("skills", in.Skills)
	query.Set("min_proficiency", intParam(in.MinProficiency, 3))
	return s.forward(ctx, req, "search_talent", in, "/tm/talent/search", query)
}

func (s *Server) handleGetOrgSkillSummary(ctx context.Context, req *mcpsdk.CallToolRequest, in OrgSkillSummaryInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/orgs/%s/skills/summary", url.PathEscape(in.OrgUnitID))
	query := url.Values{}
	query.Set("limit", intParam(in.Limit, 20))
	return s.forward(ctx, req, "get_org_skill_summary", in, path, query)
}

func (s *Server) handleGetOrgSkillExperts(ctx context.Context, req *mcpsdk.CallToolRequest, in OrgSkillExpertsInput) (*mcpsdk.CallToolResult, any, error) {
	path := fmt.Sprintf("/tm/orgs/%s/skills/%d/experts", url.PathEscape(in.OrgUnitID), int(in.SkillID))
	query := url.Values{}
	query.Set("min_proficiency", intParam(in.MinProficiency, 3))
	query.Set("limit", intParam(in.Limit, 20))
	return s.forward(ctx, req, "get_org_skill_experts", in, path, query)
}

// --- Forwarding ---

// forward makes one upstream GET and records exactly one audit event after
// the terminal outcome. Upstream failures become tool-level error results,
// not protocol errors, so the client sees the reason.
func (s *Server) forward(ctx context.Context, req *mcpsdk.CallToolRequest, operation string, args any, path string, query url.Values) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	body, err := s.upstream.Get(ctx, path, query)

	inv := audit.Invocation{
		Operation: operation,
		RequestID: identity.NewRequestID(),
		Arguments: args,
		Duration:  time.Since(start),
		Err:       err,
	}
	inv.SessionID, inv.ClientName, inv.ClientVersion = s.caller(req)
	s.recorder.Record(inv)

	if err != nil {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			IsError: true,
		}, nil, nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: body}},
	}, nil, nil
}

// caller extracts session and client identity from the request, falling
// back to the process-level session ID when the transport carries none.
func (s *Server) caller(req *mcpsdk.CallToolRequest) (sessionID, clientName, clientVersion string) {
	sessionID = s.sessionID
	if req == nil || req.Session == nil {
		return sessionID, "", ""
	}
	if id := req.Session.ID(); id != "" {
		sessionID = id
	}
	if init := req.Session.InitializeParams(); init != nil && init.ClientInfo != nil {
		clientName = init.ClientInfo.Name
		clientVersion = init.ClientInfo.Version
	}
	return sessionID, clientName, clientVersion
}

// intParam renders an optional float parameter as an integer query value,
// truncating the same way the upstream API expects.
func intParam(v *float64, def int) string {
	if v == nil {
		return strconv.Itoa(def)
	}
	return strconv.Itoa(int(*v))
}
