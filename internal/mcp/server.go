// Package mcp exposes the Talent Management Skills API as MCP tools,
// resources, and prompts, recording every forwarded tool call in the
// audit log.
package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/talentops/skillgate/internal/audit"
	"github.com/talentops/skillgate/internal/gateway"
	"github.com/talentops/skillgate/internal/identity"
)

const serverName = "tm-skills"

const serverInstructions = "You have access to a Talent Management Skills API that stores employee " +
	"skill profiles, proficiency scores, evidence, and org hierarchy data. " +
	"Use the tools to answer HR and talent questions. Employee IDs look like " +
	"EMP000001. Org IDs look like ORG030. Skill IDs are numeric (e.g. 1 or 1.0). " +
	"Start by browsing the skill catalog (browse_skills) if you need to find " +
	"skill IDs by name."

// Config holds MCP server dependencies.
type Config struct {
	Upstream     *gateway.Client
	Recorder     *audit.Recorder
	Querier      *audit.Querier
	ResourcesDir string
	Version      string
}

// Server wraps the MCP SDK server with upstream forwarding and audit recording.
type Server struct {
	mcpServer    *mcpsdk.Server
	upstream     *gateway.Client
	recorder     *audit.Recorder
	querier      *audit.Querier
	resourcesDir string

	// sessionID identifies this process for transports that carry no
	// session of their own (stdio serves a single client connection).
	sessionID string
}

// New creates an MCP server with all tools, resources, and prompts registered.
func New(cfg Config) (*Server, error) {
	if cfg.Upstream == nil {
		return nil, errors.New("mcp: upstream client is required")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("mcp: audit recorder is required")
	}
	if cfg.Querier == nil {
		return nil, errors.New("mcp: audit querier is required")
	}

	resourcesDir := cfg.ResourcesDir
	if resourcesDir == "" {
		resourcesDir = "resources"
	}
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	s := &Server{
		upstream:     cfg.Upstream,
		recorder:     cfg.Recorder,
		querier:      cfg.Querier,
		resourcesDir: resourcesDir,
		sessionID:    identity.NewSessionID(),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		},
		&mcpsdk.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerAuditTools()
	s.registerResources()
	s.registerPrompts()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds one tool per Talent Management API endpoint.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_employee_skills",
		Description: "Get the full skill profile for an employee: all skills with proficiency (0-5), " +
			"confidence (0-100), source, and last updated date.",
	}, s.handleGetEmployeeSkills)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_skill_evidence",
		Description: "Get the evidence behind an employee's skill rating: certifications, projects, " +
			"assessments, peer endorsements, etc.",
	}, s.handleGetSkillEvidence)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_top_skills",
		Description: "Get an employee's strongest skills ranked by proficiency and confidence: " +
			"a \"skill passport\" view.",
	}, s.handleGetTopSkills)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_evidence_inventory",
		Description: "Get ALL evidence items across ALL skills for an employee: the complete " +
			"evidence inventory (certifications, projects, endorsements).",
	}, s.handleGetEvidenceInventory)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "browse_skills",
		Description: "Browse the skill catalog: list all skills or filter by category/search term. " +
			"Use this to find skill IDs before calling other tools.",
	}, s.handleBrowseSkills)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_top_experts",
		Description: "Find the top experts for a specific skill, ranked by proficiency, confidence, and recency.",
	}, s.handleGetTopExperts)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_skill_coverage",
		Description: "Get the proficiency distribution for a skill: how many employees at each level (0-5) " +
			"and total count above a threshold.",
	}, s.handleGetSkillCoverage)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_evidence_backed_candidates",
		Description: "Find employees with a skill AND strong evidence to back it up: certifications, " +
			"project work, assessments with high signal strength.",
	}, s.handleGetEvidenceBackedCandidates)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_stale_skills",
		Description: "Find employees whose skill record hasn't been validated or updated recently. " +
			"Useful for governance and freshness checks.",
	}, s.handleGetStaleSkills)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_cooccurring_skills",
		Description: "Discover which skills commonly co-occur with a given skill: \"people who know X " +
			"also tend to know Y\". Useful for recommendations and skill adjacency analysis.",
	}, s.handleGetCooccurringSkills)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "search_talent",
		Description: "Find employees who have ALL specified skills at a minimum proficiency (an AND search). " +
			"Returns matching employees with per-skill detail.",
	}, s.handleSearchTalent)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_org_skill_summary",
		Description: "Get the top skills in an org unit (including all child orgs in the hierarchy): " +
			"aggregate counts and top experts per skill.",
	}, s.handleGetOrgSkillSummary)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "get_org_skill_experts",
		Description: "Find employees within an org unit who have a specific skill, scoped to the " +
			"org hierarchy (includes child orgs).",
	}, s.handleGetOrgSkillExperts)
}
