package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
)

const maxBatch = 100

var resolvedTypes = []string{"COLOR", "FLOAT", "STRING", "BOOLEAN"}

func (t *Set) variableTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("figma_update_variable",
				mcp.WithDescription("Update a variable value in a mode. Get IDs from figma_get_variables."),
				mcp.WithString("variableId", mcp.Required()),
				mcp.WithString("modeId", mcp.Required()),
				mcp.WithAny("value", mcp.Required(), mcp.Description("String, number or boolean")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				ids, err := requireStrings(req, "variableId", "modeId")
				if err != nil {
					return nil, err
				}
				return t.client.UpdateVariable(ctx, ids[0], ids[1], req.GetArguments()["value"])
			}),
		},
		{
			Tool: mcp.NewTool("figma_create_variable",
				mcp.WithDescription("Create a variable in a collection. Get collectionId from figma_get_variables."),
				mcp.WithString("name", mcp.Required()),
				mcp.WithString("collectionId", mcp.Required()),
				mcp.WithString("resolvedType", mcp.Required(), mcp.Enum(resolvedTypes...)),
				mcp.WithObject("options", mcp.Description("valuesByMode, description, scopes")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				args, err := requireStrings(req, "name", "collectionId", "resolvedType")
				if err != nil {
					return nil, err
				}
				return t.client.CreateVariable(ctx, args[0], args[1], args[2], argMap(req, "options"))
			}),
		},
		{
			Tool: mcp.NewTool("figma_create_variable_collection",
				mcp.WithDescription("Create a variable collection."),
				mcp.WithString("name", mcp.Required()),
				mcp.WithObject("options", mcp.Description("initialModeName, additionalModes")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				name, err := req.RequireString("name")
				if err != nil {
					return nil, err
				}
				return t.client.CreateVariableCollection(ctx, name, argMap(req, "options"))
			}),
		},
		{
			Tool: mcp.NewTool("figma_delete_variable",
				mcp.WithDescription("Delete a variable."),
				mcp.WithString("variableId", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				id, err := req.RequireString("variableId")
				if err != nil {
					return nil, err
				}
				return t.client.DeleteVariable(ctx, id)
			}),
		},
		{
			Tool: mcp.NewTool("figma_delete_variable_collection",
				mcp.WithDescription("Delete a variable collection."),
				mcp.WithString("collectionId", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				id, err := req.RequireString("collectionId")
				if err != nil {
					return nil, err
				}
				return t.client.DeleteVariableCollection(ctx, id)
			}),
		},
		{
			Tool: mcp.NewTool("figma_rename_variable",
				mcp.WithDescription("Rename a variable."),
				mcp.WithString("variableId", mcp.Required()),
				mcp.WithString("newName", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				args, err := requireStrings(req, "variableId", "newName")
				if err != nil {
					return nil, err
				}
				return t.client.RenameVariable(ctx, args[0], args[1])
			}),
		},
		{
			Tool: mcp.NewTool("figma_add_mode",
				mcp.WithDescription("Add a mode to a collection."),
				mcp.WithString("collectionId", mcp.Required()),
				mcp.WithString("modeName", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				args, err := requireStrings(req, "collectionId", "modeName")
				if err != nil {
					return nil, err
				}
				return t.client.AddMode(ctx, args[0], args[1])
			}),
		},
		{
			Tool: mcp.NewTool("figma_rename_mode",
				mcp.WithDescription("Rename a mode in a collection."),
				mcp.WithString("collectionId", mcp.Required()),
				mcp.WithString("modeId", mcp.Required()),
				mcp.WithString("newName", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				args, err := requireStrings(req, "collectionId", "modeId", "newName")
				if err != nil {
					return nil, err
				}
				return t.client.RenameMode(ctx, args[0], args[1], args[2])
			}),
		},
		{
			Tool: mcp.NewTool("figma_refresh_variables",
				mcp.WithDescription("Refresh variables from the file."),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				return t.client.RefreshVariables(ctx)
			}),
		},
		{
			Tool: mcp.NewTool("figma_batch_create_variables",
				mcp.WithDescription("Create up to 100 variables in one call. Each item: collectionId, name, resolvedType, value, modeId or valuesByMode. Returns created and failed lists."),
				mcp.WithArray("items", mcp.Required(), mcp.MaxItems(maxBatch), mcp.Items(map[string]any{"type": "object"})),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				items, err := batchItems(req, "collectionId", "name", "resolvedType")
				if err != nil {
					return nil, err
				}
				raw, err := t.client.BatchCreateVariables(ctx, items)
				if err != nil {
					return nil, err
				}
				return withSuccess(raw), nil
			}),
		},
		{
			Tool: mcp.NewTool("figma_batch_update_variables",
				mcp.WithDescription("Update up to 100 variables. Each item: variableId, modeId, value. Returns updated and failed lists."),
				mcp.WithArray("items", mcp.Required(), mcp.MaxItems(maxBatch), mcp.Items(map[string]any{"type": "object"})),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				items, err := batchItems(req, "variableId", "modeId")
				if err != nil {
					return nil, err
				}
				raw, err := t.client.BatchUpdateVariables(ctx, items)
				if err != nil {
					return nil, err
				}
				return withSuccess(raw), nil
			}),
		},
		{
			Tool: mcp.NewTool("figma_setup_design_tokens",
				mcp.WithDescription("Atomically create a variable collection, its modes and variables. Rolls back on any error."),
				mcp.WithString("collectionName", mcp.Required()),
				mcp.WithArray("modes", mcp.Required(), mcp.MinItems(1), mcp.WithStringItems()),
				mcp.WithArray("tokens", mcp.Required(), mcp.Items(map[string]any{"type": "object"})),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				name, err := req.RequireString("collectionName")
				if err != nil {
					return nil, err
				}
				modes := req.GetStringSlice("modes", nil)
				if len(modes) == 0 {
					return nil, fmt.Errorf("modes must list at least one mode")
				}
				tokens, err := designTokens(req)
				if err != nil {
					return nil, err
				}
				return t.client.SetupDesignTokens(ctx, name, modes, tokens)
			}),
		},
	}
}

func (t *Set) nodeTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("figma_set_instance_properties",
				mcp.WithDescription("Set component instance properties (TEXT, BOOLEAN, VARIANT, etc.)."),
				mcp.WithString("nodeId", mcp.Required()),
				mcp.WithObject("properties", mcp.Required()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				nodeID, err := req.RequireString("nodeId")
				if err != nil {
					return nil, err
				}
				props := argMap(req, "properties")
				if props == nil {
					return nil, fmt.Errorf("properties must be an object")
				}
				return t.client.SetInstanceProperties(ctx, nodeID, props)
			}),
		},
		{
			Tool: mcp.NewTool("figma_instantiate_component",
				mcp.WithDescription("Create a component instance. Use componentKey from figma_search_components, or options.nodeId for local components."),
				mcp.WithString("componentKey", mcp.Required()),
				mcp.WithObject("options", mcp.Description("nodeId, position {x,y}, parentId, overrides, variant")),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				key, err := req.RequireString("componentKey")
				if err != nil {
					return nil, err
				}
				return t.client.InstantiateComponent(ctx, key, argMap(req, "options"))
			}),
		},
		{
			Tool: mcp.NewTool("figma_set_description",
				mcp.WithDescription("Set the description of a component, component set or style. Supports markdown."),
				mcp.WithString("nodeId", mcp.Required()),
				mcp.WithString("description", mcp.Required()),
				mcp.WithString("descriptionMarkdown"),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				args, err := requireStrings(req, "nodeId", "description")
				if err != nil {
					return nil, err
				}
				return t.client.SetNodeDescription(ctx, args[0], args[1], req.GetString("descriptionMarkdown", ""))
			}),
		},
		{
			Tool: mcp.NewTool("figma_arrange_component_set",
				mcp.WithDescription("Combine component nodes into one component set. Returns the new component set nodeId."),
				mcp.WithArray("nodeIds", mcp.Required(), mcp.MinItems(2), mcp.WithStringItems()),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				ids := req.GetStringSlice("nodeIds", nil)
				if len(ids) < 2 {
					return nil, fmt.Errorf("nodeIds needs at least 2 component node IDs")
				}
				raw, err := t.client.ArrangeComponentSet(ctx, ids)
				if err != nil {
					return nil, err
				}
				return withSuccess(raw), nil
			}),
		},
	}
}

func requireStrings(req mcp.CallToolRequest, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v, err := req.RequireString(k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func batchItems(req mcp.CallToolRequest, required ...string) ([]map[string]any, error) {
	items := argMaps(req, "items")
	if len(items) == 0 {
		return nil, fmt.Errorf("items must be a non-empty array of objects")
	}
	if len(items) > maxBatch {
		return nil, fmt.Errorf("at most %d items per call, got %d", maxBatch, len(items))
	}
	for i, item := range items {
		for _, k := range required {
			if s, _ := item[k].(string); s == "" {
				return nil, fmt.Errorf("items[%d].%s is required", i, k)
			}
		}
	}
	return items, nil
}

func designTokens(req mcp.CallToolRequest) ([]designtool.DesignToken, error) {
	items := argMaps(req, "tokens")
	out := make([]designtool.DesignToken, 0, len(items))
	for i, item := range items {
		b, _ := json.Marshal(item)
		var tok designtool.DesignToken
		if err := json.Unmarshal(b, &tok); err != nil || tok.Name == "" {
			return nil, fmt.Errorf("tokens[%d] needs a name", i)
		}
		out = append(out, tok)
	}
	return out, nil
}

// withSuccess merges the plugin reply object into {"success":true,...}.
func withSuccess(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	out["success"] = true
	return out
}
