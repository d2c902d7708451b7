// Package tools exposes the plugin operations as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/fmcp-bridge/internal/bridge"
	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
)

// NotConnectedMessage tells the user how to get the plugin attached.
const NotConnectedMessage = "F-MCP Bridge plugin not connected. Open Figma > Plugins > Development > F-MCP Bridge and wait for 'ready'."

// Set holds the dependencies shared by every tool handler.
type Set struct {
	client *designtool.Client
	status func() bridge.Snapshot
	// pollInterval paces figma_watch_console.
	pollInterval time.Duration
}

// New returns the tool set backed by client. status reports the bridge state
// for figma_get_status.
func New(client *designtool.Client, status func() bridge.Snapshot) *Set {
	return &Set{client: client, status: status, pollInterval: time.Second}
}

// Register adds every tool to s.
func (t *Set) Register(s *server.MCPServer) {
	s.AddTools(t.Tools()...)
}

// Tools returns every tool with its handler.
func (t *Set) Tools() []server.ServerTool {
	var out []server.ServerTool
	out = append(out, t.statusTools()...)
	out = append(out, t.readTools()...)
	out = append(out, t.variableTools()...)
	out = append(out, t.nodeTools()...)
	out = append(out, t.consoleTools()...)
	out = append(out, t.tokenTools()...)
	return out
}

type handler func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// guarded fails fast with a hint when no plugin is attached and renders the
// handler result as a text tool result.
func (t *Set) guarded(h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !t.client.Connected() {
			return errorResult(NotConnectedMessage), nil
		}
		v, err := h(ctx, req)
		if err != nil {
			return errorResult(messageFor(err)), nil
		}
		return render(v), nil
	}
}

func messageFor(err error) string {
	if errors.Is(err, bridge.ErrNotConnected) {
		return NotConnectedMessage
	}
	return err.Error()
}

func errorResult(msg string) *mcp.CallToolResult {
	b, _ := json.Marshal(map[string]any{"success": false, "error": msg})
	return mcp.NewToolResultError(string(b))
}

// render turns a handler value into text. Raw plugin replies pass through
// compactly; a bare JSON string is returned unquoted.
func render(v any) *mcp.CallToolResult {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 || string(raw) == "null" {
			return mcp.NewToolResultText(`{"success":false,"error":"No data from plugin"}`)
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return mcp.NewToolResultText(s)
		}
		return mcp.NewToolResultText(string(raw))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult("encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(b))
}

func (t *Set) statusTools() []server.ServerTool {
	return []server.ServerTool{{
		Tool: mcp.NewTool("figma_get_status",
			mcp.WithDescription("Check whether the F-MCP Bridge plugin is connected."),
		),
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snap := t.status()
			msg := NotConnectedMessage
			if snap.Connected {
				msg = "F-MCP Bridge plugin is connected. You can use all figma_* tools."
			}
			return render(map[string]any{
				"pluginConnected": snap.Connected,
				"pluginReady":     snap.Ready,
				"port":            snap.Port,
				"pendingRequests": len(snap.Pending),
				"message":         msg,
			}), nil
		},
	}}
}

// argMap returns an object argument, or nil.
func argMap(req mcp.CallToolRequest, key string) map[string]any {
	if m, ok := req.GetArguments()[key].(map[string]any); ok {
		return m
	}
	return nil
}

// argMaps returns an array-of-objects argument.
func argMaps(req mcp.CallToolRequest, key string) []map[string]any {
	list, _ := req.GetArguments()[key].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
