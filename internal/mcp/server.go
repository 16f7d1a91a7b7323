package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/gateway"
)

// NewServer builds the MCP server: one tool per catalog operation plus the
// get_version connectivity check. Catalog may be nil, leaving only
// get_version registered.
func NewServer(name string, cat *catalog.Catalog, exec *gateway.Executor, logger *common.Logger) *server.MCPServer {
	srv := server.NewMCPServer(
		name,
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	toolCount := 0
	if cat != nil && exec != nil {
		toolCount = RegisterToolsFromCatalog(srv, exec, cat, logger)
	}
	srv.AddTool(VersionTool(), VersionToolHandler())

	logger.Info().
		Int("tools", toolCount).
		Msg("MCP server initialized")
	return srv
}

// NewStreamableHandler wraps the server for stateless HTTP transport.
func NewStreamableHandler(srv *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(srv,
		server.WithStateLess(true),
	)
}

// VersionTool is the connectivity-check tool every transport carries.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get flytel-agent MCP server version and status. Use this to verify connectivity."),
	)
}

// VersionToolHandler reports the build information.
func VersionToolHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := json.Marshal(map[string]string{
			"version": common.GetVersion(),
			"build":   common.Build,
			"commit":  common.GitCommit,
		})
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent("failed to marshal version info")},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(out))},
		}, nil
	}
}
