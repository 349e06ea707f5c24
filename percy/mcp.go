package percy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domsnap/horosafe"
	"github.com/hazyhaar/domsnap/kit"
)

// mcpTimeout bounds one tool call, browser launch included.
const mcpTimeout = 2 * time.Minute

// RegisterMCP registers the snapshot tools on an MCP server.
func (c *Client) RegisterMCP(srv *mcp.Server) {
	c.registerSnapshotTool(srv)
	c.registerListTool(srv)
	c.registerGetTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (c *Client) wrap(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(
		kit.Recovery(c.logger),
		kit.Logging(c.logger, name),
		kit.Timeout(mcpTimeout),
	)(e)
}

// --- snapshot ---

type snapshotReq struct {
	URL              string `json:"url"`
	Name             string `json:"name"`
	EnableJavaScript bool   `json:"enable_javascript"`
	Screenshot       bool   `json:"screenshot"`
	Widths           []int  `json:"widths"`
	MinHeight        int    `json:"min_height"`
	PercyCSS         string `json:"percy_css"`
	Post             *bool  `json:"post"`
}

func (c *Client) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domsnap_snapshot",
		Description: "Open a URL in the managed browser, serialize the page (or a screenshot of it) and post it to the snapshot agent.",
		InputSchema: inputSchema(map[string]any{
			"url":               map[string]any{"type": "string", "description": "Page URL (http or https)"},
			"name":              map[string]any{"type": "string", "description": "Snapshot name, defaults to the URL"},
			"enable_javascript": map[string]any{"type": "boolean", "description": "Snapshot will be replayed with script enabled"},
			"screenshot":        map[string]any{"type": "boolean", "description": "Snapshot a screenshot instead of the document"},
			"widths":            map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "description": "Render widths"},
			"min_height":        map[string]any{"type": "integer", "description": "Minimum render height"},
			"percy_css":         map[string]any{"type": "string", "description": "CSS applied on top of the snapshot"},
			"post":              map[string]any{"type": "boolean", "description": "Post to the agent (default true)"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*snapshotReq)
		if !c.cfg.MCP.AllowPrivate {
			if err := horosafe.ValidateURL(r.URL); err != nil {
				return nil, err
			}
		}
		return c.SnapshotURL(ctx, r.URL, r.Name, SnapshotOptions{
			EnableJavaScript: r.EnableJavaScript,
			Screenshot:       r.Screenshot,
			Widths:           r.Widths,
			MinHeight:        r.MinHeight,
			PercyCSS:         r.PercyCSS,
			NoPost:           r.Post != nil && !*r.Post,
		})
	}

	decode := func(args json.RawMessage) (*kit.MCPDecodeResult, error) {
		var r snapshotReq
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, err
		}
		if r.URL == "" {
			return nil, errors.New("url is required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.wrap(tool.Name, endpoint), decode)
}

// --- list ---

type listReq struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

func (c *Client) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domsnap_list",
		Description: "List archived snapshots, newest first.",
		InputSchema: inputSchema(map[string]any{
			"name":  map[string]any{"type": "string", "description": "Only snapshots with this name"},
			"limit": map[string]any{"type": "integer", "description": "Maximum results (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listReq)
		snaps, err := c.Archived(ctx, r.Name, r.Limit)
		if err != nil {
			return nil, err
		}
		if snaps == nil {
			snaps = []ArchivedSnapshot{}
		}
		return snaps, nil
	}

	decode := func(args json.RawMessage) (*kit.MCPDecodeResult, error) {
		var r listReq
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.wrap(tool.Name, endpoint), decode)
}

// --- get ---

type getReq struct {
	ID string `json:"id"`
}

func (c *Client) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domsnap_get",
		Description: "Fetch one archived snapshot with its serialized HTML.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Archive id"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*getReq)
		snap, err := c.ArchivedSnapshot(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, errors.New("snapshot not found: " + r.ID)
		}
		return snap, nil
	}

	decode := func(args json.RawMessage) (*kit.MCPDecodeResult, error) {
		var r getReq
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.wrap(tool.Name, endpoint), decode)
}
