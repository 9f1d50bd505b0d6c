package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerResources adds the static context documents. Files are read on
// every request so edits show up without a restart.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcpsdk.Resource{
		URI:         "tm://schema",
		Name:        "tm-schema",
		Description: "The TM database schema: tables, columns, types, indexes, and relationships.",
		MIMEType:    "text/plain",
	}, s.fileResource("tm_schema.sql", "text/plain"))

	s.mcpServer.AddResource(&mcpsdk.Resource{
		URI:         "tm://business-questions",
		Name:        "tm-business-questions",
		Description: "Catalog of 12 business questions the TM Skills API can answer, with endpoint mappings.",
		MIMEType:    "text/markdown",
	}, s.fileResource("business_questions.md", "text/markdown"))
}

// fileResource serves one file from the resources directory.
func (s *Server) fileResource(name, mimeType string) mcpsdk.ResourceHandler {
	return func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		data, err := os.ReadFile(filepath.Join(s.resourcesDir, name))
		if err != nil {
			return nil, fmt.Errorf("read resource %s: %w", name, err)
		}
		return &mcpsdk.ReadResourceResult{
			Contents: []*mcpsdk.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: mimeType,
				Text:     string(data),
			}},
		}, nil
	}
}
