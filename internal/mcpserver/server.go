// Package mcpserver exposes the database tools over the Model Context
// Protocol so external MCP clients get the same guarded access as the agent.
package mcpserver

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lojasmm/sqldash/internal/ai"
	"github.com/lojasmm/sqldash/internal/ai/tools"
)

const serverName = "sqldash"

type schemaInput struct{}

type queryInput struct {
	Query string `json:"query" jsonschema:"A single SQL SELECT statement"`
}

// New builds an MCP server whose tools delegate to g.
func New(g tools.Gateway, version string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ai.ToolGetSchema,
		Description: tools.NewGetSchema(g).Description(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ schemaInput) (*mcp.CallToolResult, any, error) {
		return textResult(g.SchemaJSON(ctx)), nil, nil
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        ai.ToolReadQuery,
		Description: tools.NewReadQuery(g).Description(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in queryInput) (*mcp.CallToolResult, any, error) {
		log.Printf("mcp: read_query %q", in.Query)
		return textResult(g.QueryJSON(ctx, in.Query)), nil, nil
	})

	return s
}

// Serve runs s over stdin/stdout until the client disconnects or ctx ends.
func Serve(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Query failures are data for the caller, so they are never flagged IsError.
func textResult(doc string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: doc}}}
}
