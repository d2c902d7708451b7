package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
)

func (t *Set) readTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("figma_get_file_data",
				mcp.WithDescription("Get file structure and document tree from the open Figma file. Start with depth=1 and verbosity=summary for minimal tokens."),
				mcp.WithNumber("depth", mcp.Description("Tree depth, 0-3"), mcp.DefaultNumber(1), mcp.Min(0), mcp.Max(3)),
				mcp.WithString("verbosity", mcp.Enum("summary", "standard", "full"), mcp.DefaultString("summary")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				return t.client.GetDocumentStructure(ctx, clamp(req.GetInt("depth", 1), 0, 3), req.GetString("verbosity", "summary"))
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_design_context",
				mcp.WithDescription("Design context for a node or the whole file: structure plus text content. If nodeId is given returns that node's subtree; otherwise the document structure."),
				mcp.WithString("nodeId", mcp.Description("Node to describe, e.g. 45:4602")),
				mcp.WithNumber("depth", mcp.DefaultNumber(2), mcp.Min(0), mcp.Max(3)),
				mcp.WithString("verbosity", mcp.Enum("summary", "standard", "full"), mcp.DefaultString("standard")),
				mcp.WithString("outputHint", mcp.Description("Target output, e.g. react or swiftui")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				depth := clamp(req.GetInt("depth", 2), 0, 3)
				verbosity := req.GetString("verbosity", "standard")
				nodeID := req.GetString("nodeId", "")
				if nodeID == "" {
					return t.client.GetDocumentStructure(ctx, depth, verbosity)
				}
				return t.client.GetNodeContext(ctx, designtool.NodeContextParams{
					NodeID:     nodeID,
					Depth:      depth,
					Verbosity:  verbosity,
					OutputHint: req.GetString("outputHint", ""),
				})
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_metadata",
				mcp.WithDescription("Get node metadata: id, type, name, position and size."),
				mcp.WithString("nodeId", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				nodeID, err := req.RequireString("nodeId")
				if err != nil {
					return nil, err
				}
				return t.client.GetNodeContext(ctx, designtool.NodeContextParams{NodeID: nodeID, Depth: 1, Verbosity: "summary"})
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_variables",
				mcp.WithDescription("Get design tokens and variables from the open Figma file. Returns a summary by default to save tokens."),
				mcp.WithString("verbosity", mcp.Enum("inventory", "summary", "standard", "full"), mcp.DefaultString("summary")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				vars, err := t.client.GetVariables(ctx)
				if err != nil {
					return nil, err
				}
				if vars.Variables == nil {
					return map[string]any{"success": false, "error": "Variables not loaded"}, nil
				}
				return shapeVariables(vars, req.GetString("verbosity", "summary")), nil
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_component",
				mcp.WithDescription("Get component metadata by node ID. Use figma_get_file_data or figma_search_components to find node IDs."),
				mcp.WithString("nodeId", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				nodeID, err := req.RequireString("nodeId")
				if err != nil {
					return nil, err
				}
				return t.client.GetComponent(ctx, nodeID)
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_component_for_development",
				mcp.WithDescription("Get component metadata plus a base64 screenshot in one call."),
				mcp.WithString("nodeId", mcp.Required()),
				mcp.WithNumber("scale", mcp.DefaultNumber(2), mcp.Min(0.5), mcp.Max(4)),
				mcp.WithString("format", mcp.Enum("PNG", "JPG"), mcp.DefaultString("PNG")),
			),
			Handler: t.guarded(t.componentForDevelopment),
		},
		{
			Tool: mcp.NewTool("figma_get_styles",
				mcp.WithDescription("Get local paint, text and effect styles. Default verbosity=summary."),
				mcp.WithString("verbosity", mcp.Enum("summary", "full"), mcp.DefaultString("summary")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				styles, err := t.client.GetLocalStyles(ctx, req.GetString("verbosity", "summary"))
				if err != nil {
					return nil, err
				}
				if len(styles.Raw) == 0 || string(styles.Raw) == "null" {
					return map[string]any{}, nil
				}
				return styles.Raw, nil
			}),
		},
		{
			Tool: mcp.NewTool("figma_capture_screenshot",
				mcp.WithDescription("Capture a screenshot of a node, or of the current view when nodeId is omitted."),
				mcp.WithString("nodeId"),
				mcp.WithString("format", mcp.Enum("PNG", "JPG"), mcp.DefaultString("PNG")),
				mcp.WithNumber("scale", mcp.DefaultNumber(2)),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				return t.client.CaptureScreenshot(ctx, req.GetString("nodeId", ""), designtool.ScreenshotOptions{
					Format: strings.ToUpper(req.GetString("format", "PNG")),
					Scale:  req.GetFloat("scale", 2),
				})
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_component_image",
				mcp.WithDescription("Get a base64 screenshot of a component or frame."),
				mcp.WithString("nodeId", mcp.Required()),
				mcp.WithNumber("scale", mcp.DefaultNumber(2), mcp.Min(0.5), mcp.Max(4)),
				mcp.WithString("format", mcp.Enum("PNG", "JPG"), mcp.DefaultString("PNG")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				nodeID, err := req.RequireString("nodeId")
				if err != nil {
					return nil, err
				}
				return t.client.CaptureScreenshot(ctx, nodeID, designtool.ScreenshotOptions{
					Format: strings.ToUpper(req.GetString("format", "PNG")),
					Scale:  clampFloat(req.GetFloat("scale", 2), 0.5, 4),
				})
			}),
		},
		{
			Tool: mcp.NewTool("figma_execute",
				mcp.WithDescription("Run JavaScript in the Figma plugin context with the full Plugin API."),
				mcp.WithString("code", mcp.Required()),
				mcp.WithNumber("timeout", mcp.Description("Code timeout in milliseconds"), mcp.DefaultNumber(5000)),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				code, err := req.RequireString("code")
				if err != nil {
					return nil, err
				}
				ms := req.GetInt("timeout", 5000)
				if ms <= 0 {
					ms = 5000
				}
				return t.client.Execute(ctx, code, time.Duration(ms)*time.Millisecond)
			}),
		},
		{
			Tool: mcp.NewTool("figma_get_design_system_summary",
				mcp.WithDescription("Compact overview: variable collection names and component counts."),
				mcp.WithBoolean("currentPageOnly", mcp.DefaultBool(false)),
			),
			Handler: t.guarded(t.designSystemSummary),
		},
		{
			Tool: mcp.NewTool("figma_search_components",
				mcp.WithDescription("Search local components by name. Returns node IDs and names."),
				mcp.WithString("query"),
				mcp.WithBoolean("currentPageOnly", mcp.DefaultBool(false)),
				mcp.WithNumber("limit", mcp.Description("Maximum matches, 0 for all"), mcp.DefaultNumber(0)),
			),
			Handler: t.guarded(t.searchComponents),
		},
	}
}

func shapeVariables(vars *designtool.VariablesPayload, verbosity string) map[string]any {
	out := map[string]any{"success": true, "source": "plugin"}
	collections := vars.VariableCollections
	switch verbosity {
	case "inventory":
		vs := make([]map[string]any, 0, len(vars.Variables))
		for _, v := range vars.Variables {
			vs = append(vs, map[string]any{"id": v.ID, "name": v.Name})
		}
		cs := make([]map[string]any, 0, len(collections))
		for _, c := range collections {
			cs = append(cs, map[string]any{"id": c.ID, "name": c.Name})
		}
		out["variables"], out["variableCollections"] = vs, cs
		return out
	case "summary":
		vs := make([]map[string]any, 0, len(vars.Variables))
		for _, v := range vars.Variables {
			vs = append(vs, map[string]any{"id": v.ID, "name": v.Name, "resolvedType": v.ResolvedType, "valuesByMode": v.ValuesByMode})
		}
		out["variables"] = vs
	default:
		vs := make([]json.RawMessage, 0, len(vars.Variables))
		for _, v := range vars.Variables {
			vs = append(vs, v.Raw)
		}
		out["variables"] = vs
	}
	cs := make([]json.RawMessage, 0, len(collections))
	for _, c := range collections {
		cs = append(cs, c.Raw)
	}
	out["variableCollections"] = cs
	return out
}

func (t *Set) componentForDevelopment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return nil, err
	}
	var component, shot json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		component, err = t.client.GetComponent(gctx, nodeID)
		return err
	})
	g.Go(func() error {
		var err error
		shot, err = t.client.CaptureScreenshot(gctx, nodeID, designtool.ScreenshotOptions{
			Format: strings.ToUpper(req.GetString("format", "PNG")),
			Scale:  clampFloat(req.GetFloat("scale", 2), 0.5, 4),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var compEnv struct {
		Component json.RawMessage `json:"component"`
	}
	comp := component
	if json.Unmarshal(component, &compEnv) == nil && len(compEnv.Component) > 0 {
		comp = compEnv.Component
	}
	var shotEnv struct {
		Image json.RawMessage `json:"image"`
		Data  json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(shot, &shotEnv)
	image := shotEnv.Image
	if len(image) == 0 || string(image) == "null" {
		image = shotEnv.Data
	}
	return map[string]any{"success": true, "component": comp, "image": image}, nil
}

func (t *Set) designSystemSummary(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var (
		vars  *designtool.VariablesPayload
		comps *designtool.ComponentsPayload
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vars, err = t.client.GetVariables(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		comps, err = t.client.GetLocalComponents(gctx, req.GetBool("currentPageOnly", false), 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cs := make([]map[string]any, 0, len(vars.VariableCollections))
	for _, c := range vars.VariableCollections {
		cs = append(cs, map[string]any{"id": c.ID, "name": c.Name, "variableCount": len(c.VariableIDs)})
	}
	out := map[string]any{"success": true, "source": "plugin", "variableCollections": cs, "components": 0, "componentSets": 0}
	if comps.Data != nil {
		out["components"] = comps.Data.TotalComponents
		out["componentSets"] = comps.Data.TotalComponentSets
	}
	return out, nil
}

func (t *Set) searchComponents(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	comps, err := t.client.GetLocalComponents(ctx, req.GetBool("currentPageOnly", false), 0)
	if err != nil {
		return nil, err
	}
	if comps.Data == nil {
		return map[string]any{"success": false, "error": "No component data"}, nil
	}
	q := strings.ToLower(strings.TrimSpace(req.GetString("query", "")))
	matches := make([]designtool.ComponentSummary, 0)
	for _, c := range comps.All() {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) {
			matches = append(matches, designtool.ComponentSummary{ID: c.ID, Name: c.Name, Type: c.Type})
		}
	}
	total := len(matches)
	if limit := req.GetInt("limit", 0); limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return map[string]any{"success": true, "components": matches, "total": total}, nil
}
