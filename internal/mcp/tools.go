// Package mcp exposes the operation catalog as MCP tools, so any MCP client
// can drive the same external API gateway the chat loop uses.
package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/flytel-agent/internal/catalog"
	"github.com/bobmcallan/flytel-agent/internal/common"
	"github.com/bobmcallan/flytel-agent/internal/gateway"
)

// BuildMCPTool converts one catalog operation into an mcp.Tool. Path and
// query parameters become typed arguments; body-carrying methods get a
// request_body argument holding a JSON object string.
func BuildMCPTool(op catalog.Operation) mcp.Tool {
	summary := strings.TrimSpace(op.Summary)
	if summary == "" {
		summary = "External API call"
	}
	opts := []mcp.ToolOption{
		mcp.WithDescription(summary + " (" + op.Method + " " + op.PathTemplate + ")"),
	}
	for _, p := range op.Parameters {
		opts = append(opts, buildParamOption(p))
	}
	if op.HasBody() {
		opts = append(opts, mcp.WithString("request_body",
			mcp.Description("JSON body for the request (optional)")))
	}
	return mcp.NewTool(op.OperationID, opts...)
}

func buildParamOption(p catalog.ParameterSpec) mcp.ToolOption {
	var opts []mcp.PropertyOption
	opts = append(opts, mcp.Description(p.In+" parameter"))
	if p.Required {
		opts = append(opts, mcp.Required())
	}
	switch p.Type {
	case "number", "integer":
		return mcp.WithNumber(p.Name, opts...)
	case "boolean":
		return mcp.WithBoolean(p.Name, opts...)
	default:
		return mcp.WithString(p.Name, opts...)
	}
}

// OperationToolHandler routes an MCP tool call through the gateway executor.
// Gateway outcomes are strings by design, so the handler never returns an
// error to the MCP layer.
func OperationToolHandler(exec *gateway.Executor, op catalog.Operation, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := r.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		if body, ok := args["request_body"].(string); ok {
			args["request_body"] = gateway.CoerceParamMap(body)
		}
		call, _ := exec.RouteArgs(op.OperationID, args)
		logger.Info().
			Str("operation_id", op.OperationID).
			Msg("MCP tool call")
		result := exec.Execute(ctx, call)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(result)},
		}, nil
	}
}

// RegisterToolsFromCatalog adds one MCP tool per catalog operation and
// returns the number registered.
func RegisterToolsFromCatalog(srv *server.MCPServer, exec *gateway.Executor, cat *catalog.Catalog, logger *common.Logger) int {
	count := 0
	for _, op := range cat.Operations() {
		srv.AddTool(BuildMCPTool(op), OperationToolHandler(exec, op, logger))
		count++
	}
	return count
}
