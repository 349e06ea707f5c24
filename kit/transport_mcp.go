package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domsnap/idgen"
)

// TransportMCP is the transport name set on MCP tool calls.
const TransportMCP = "mcp_stdio"

// MCPDecodeResult holds the decoded request and an optional context enrichment.
type MCPDecodeResult struct {
	Request   any
	EnrichCtx func(context.Context) context.Context
}

// MCPDecoder turns a tool call's JSON arguments into an endpoint request.
// Omitted or null arguments arrive as {}.
type MCPDecoder func(args json.RawMessage) (*MCPDecodeResult, error)

var emptyArgs = json.RawMessage(`{}`)

// RegisterMCPTool registers an Endpoint as an MCP tool. Each call gets the
// MCP transport and a request id in its context, unless the decoder's
// enrichment already set one. Decode and endpoint failures become tool
// errors prefixed with the tool name; responses are JSON text content.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode MCPDecoder) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(toolArgs(req))
		if err != nil {
			return toolError(fmt.Errorf("%s: invalid arguments: %w", tool.Name, err)), nil
		}

		ctx = WithTransport(ctx, TransportMCP)
		if decoded.EnrichCtx != nil {
			ctx = decoded.EnrichCtx(ctx)
		}
		if GetRequestID(ctx) == "" {
			ctx = WithRequestID(ctx, idgen.New())
		}

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			return toolError(fmt.Errorf("%s: %v", tool.Name, err)), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("%s: marshal: %w", tool.Name, err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolArgs(req *mcp.CallToolRequest) json.RawMessage {
	if req == nil || req.Params == nil {
		return emptyArgs
	}
	args := bytes.TrimSpace(req.Params.Arguments)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		return emptyArgs
	}
	return args
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
