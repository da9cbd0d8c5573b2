package bridge

import (
	"context"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// Tool wraps a single MCP-discovered tool behind a stable name, which
// may differ from the tool's original name when two servers expose
// the same tool name (see resolveToolName in connect.go).
type Tool struct {
	ServerName   string
	name         string
	originalName string
	Description  string
	InputSchema  map[string]any

	client     *mcpclient.Client
	connected  *atomic.Bool
}

// Name is the name this tool is exposed under in the bridge's
// tool set.
func (t *Tool) Name() string { return t.name }

// OriginalName is the tool's name as the MCP server reported it,
// before any collision-prefixing.
func (t *Tool) OriginalName() string { return t.originalName }

// Call invokes the tool on its owning MCP server, using the tool's
// original (unprefixed) name.
func (t *Tool) Call(ctx context.Context, arguments map[string]any) (*mcpgo.CallToolResult, error) {
	req := mcpgo.CallToolRequest{
		Request: mcpgo.Request{Method: "tools/call"},
		Params: mcpgo.CallToolParams{
			Name:      t.originalName,
			Arguments: arguments,
		},
	}
	return t.client.CallTool(ctx, req)
}
