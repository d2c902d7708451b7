// Package designtool is a typed client for the operations the Figma plugin
// performs. Every call is one correlated request through the bridge.
package designtool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Submitter sends one correlated request to the plugin.
type Submitter interface {
	Submit(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)
	IsConnected() bool
}

// executeMargin is added to the code timeout so the plugin can report its
// own timeout before the bridge gives up.
const executeMargin = 5 * time.Second

// Client wraps a Submitter with the plugin's method contract.
type Client struct {
	sub     Submitter
	timeout time.Duration
}

// New returns a Client. A zero timeout uses the bridge default.
func New(sub Submitter, timeout time.Duration) *Client {
	return &Client{sub: sub, timeout: timeout}
}

// Connected reports whether the plugin is attached.
func (c *Client) Connected() bool { return c.sub.IsConnected() }

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.sub.Submit(ctx, method, params, c.timeout)
}

// GetDocumentStructure returns the document tree down to depth.
func (c *Client) GetDocumentStructure(ctx context.Context, depth int, verbosity string) (json.RawMessage, error) {
	return c.call(ctx, MethodGetDocumentStructure, map[string]any{"depth": depth, "verbosity": verbosity})
}

// NodeContextParams selects what getNodeContext returns.
type NodeContextParams struct {
	NodeID            string `json:"nodeId"`
	Depth             int    `json:"depth"`
	Verbosity         string `json:"verbosity"`
	IncludeLayout     *bool  `json:"includeLayout,omitempty"`
	IncludeVisual     *bool  `json:"includeVisual,omitempty"`
	IncludeTypography *bool  `json:"includeTypography,omitempty"`
	IncludeCodeReady  *bool  `json:"includeCodeReady,omitempty"`
	OutputHint        string `json:"outputHint,omitempty"`
}

// GetNodeContext returns a node subtree with text, layout and styling.
func (c *Client) GetNodeContext(ctx context.Context, p NodeContextParams) (json.RawMessage, error) {
	return c.call(ctx, MethodGetNodeContext, p)
}

// GetVariables returns the file's variables and collections.
func (c *Client) GetVariables(ctx context.Context) (*VariablesPayload, error) {
	raw, err := c.call(ctx, MethodGetVariablesFromPluginUI, map[string]any{})
	if err != nil {
		return nil, err
	}
	var out VariablesPayload
	if err := decodeOptional(raw, &out); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return &out, nil
}

// GetComponent returns component metadata for nodeID.
func (c *Client) GetComponent(ctx context.Context, nodeID string) (json.RawMessage, error) {
	return c.call(ctx, MethodGetComponentFromPluginUI, map[string]any{"nodeId": nodeID})
}

// GetLocalStyles returns paint, text and effect styles.
func (c *Client) GetLocalStyles(ctx context.Context, verbosity string) (*StylesPayload, error) {
	raw, err := c.call(ctx, MethodGetLocalStyles, map[string]any{"verbosity": verbosity})
	if err != nil {
		return nil, err
	}
	out := StylesPayload{Raw: raw}
	if err := decodeOptional(raw, &out); err != nil {
		return nil, fmt.Errorf("decode styles: %w", err)
	}
	return &out, nil
}

// GetLocalComponents lists components and component sets.
func (c *Client) GetLocalComponents(ctx context.Context, currentPageOnly bool, limit int) (*ComponentsPayload, error) {
	raw, err := c.call(ctx, MethodGetLocalComponents, map[string]any{"currentPageOnly": currentPageOnly, "limit": limit})
	if err != nil {
		return nil, err
	}
	var out ComponentsPayload
	if err := decodeOptional(raw, &out); err != nil {
		return nil, fmt.Errorf("decode components: %w", err)
	}
	return &out, nil
}

// Execute runs JavaScript in the plugin. The request is allowed to outlive
// codeTimeout by a margin.
func (c *Client) Execute(ctx context.Context, code string, codeTimeout time.Duration) (json.RawMessage, error) {
	timeout := codeTimeout + executeMargin
	if c.timeout > timeout {
		timeout = c.timeout
	}
	return c.sub.Submit(ctx, MethodExecuteCodeViaUI, map[string]any{"code": code, "timeout": codeTimeout.Milliseconds()}, timeout)
}

// ScreenshotOptions controls image export.
type ScreenshotOptions struct {
	Format string  `json:"format,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
}

// CaptureScreenshot exports nodeID, or the current view when nodeID is empty.
func (c *Client) CaptureScreenshot(ctx context.Context, nodeID string, opts ScreenshotOptions) (json.RawMessage, error) {
	var id any
	if nodeID != "" {
		id = nodeID
	}
	return c.call(ctx, MethodCaptureScreenshot, map[string]any{"nodeId": id, "options": opts})
}

// SetInstanceProperties sets component instance properties.
func (c *Client) SetInstanceProperties(ctx context.Context, nodeID string, props map[string]any) (json.RawMessage, error) {
	return c.call(ctx, MethodSetInstanceProperties, map[string]any{"nodeId": nodeID, "properties": props})
}

// UpdateVariable sets the value of a variable in one mode.
func (c *Client) UpdateVariable(ctx context.Context, variableID, modeID string, value any) (json.RawMessage, error) {
	return c.call(ctx, MethodUpdateVariable, map[string]any{"variableId": variableID, "modeId": modeID, "value": value})
}

// CreateVariable creates a variable in a collection.
func (c *Client) CreateVariable(ctx context.Context, name, collectionID, resolvedType string, options map[string]any) (json.RawMessage, error) {
	return c.call(ctx, MethodCreateVariable, map[string]any{
		"name":         name,
		"collectionId": collectionID,
		"resolvedType": resolvedType,
		"options":      options,
	})
}

// CreateVariableCollection creates a collection.
func (c *Client) CreateVariableCollection(ctx context.Context, name string, options map[string]any) (json.RawMessage, error) {
	return c.call(ctx, MethodCreateVariableCollection, map[string]any{"name": name, "options": options})
}

func (c *Client) DeleteVariable(ctx context.Context, variableID string) (json.RawMessage, error) {
	return c.call(ctx, MethodDeleteVariable, map[string]any{"variableId": variableID})
}

func (c *Client) DeleteVariableCollection(ctx context.Context, collectionID string) (json.RawMessage, error) {
	return c.call(ctx, MethodDeleteVariableCollection, map[string]any{"collectionId": collectionID})
}

func (c *Client) RenameVariable(ctx context.Context, variableID, newName string) (json.RawMessage, error) {
	return c.call(ctx, MethodRenameVariable, map[string]any{"variableId": variableID, "newName": newName})
}

func (c *Client) AddMode(ctx context.Context, collectionID, modeName string) (json.RawMessage, error) {
	return c.call(ctx, MethodAddMode, map[string]any{"collectionId": collectionID, "modeName": modeName})
}

func (c *Client) RenameMode(ctx context.Context, collectionID, modeID, newName string) (json.RawMessage, error) {
	return c.call(ctx, MethodRenameMode, map[string]any{"collectionId": collectionID, "modeId": modeID, "newName": newName})
}

func (c *Client) RefreshVariables(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, MethodRefreshVariables, map[string]any{})
}

// InstantiateComponent places an instance of componentKey.
func (c *Client) InstantiateComponent(ctx context.Context, componentKey string, options map[string]any) (json.RawMessage, error) {
	if options == nil {
		options = map[string]any{}
	}
	return c.call(ctx, MethodInstantiateComponent, map[string]any{"componentKey": componentKey, "options": options})
}

// SetNodeDescription sets the description of a component or style node.
func (c *Client) SetNodeDescription(ctx context.Context, nodeID, description, markdown string) (json.RawMessage, error) {
	params := map[string]any{"nodeId": nodeID, "description": description}
	if markdown != "" {
		params["descriptionMarkdown"] = markdown
	}
	return c.call(ctx, MethodSetNodeDescription, params)
}

// GetConsoleLogs returns up to limit buffered plugin console entries.
func (c *Client) GetConsoleLogs(ctx context.Context, limit int) (*ConsoleLogs, error) {
	raw, err := c.call(ctx, MethodGetConsoleLogs, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	var env struct {
		Data *ConsoleLogs `json:"data"`
	}
	if err := decodeOptional(raw, &env); err != nil {
		return nil, fmt.Errorf("decode console logs: %w", err)
	}
	if env.Data == nil {
		return &ConsoleLogs{Logs: []ConsoleEntry{}}, nil
	}
	return env.Data, nil
}

func (c *Client) ClearConsole(ctx context.Context) error {
	_, err := c.call(ctx, MethodClearConsole, map[string]any{})
	return err
}

// BatchCreateVariables creates many variables in one request.
func (c *Client) BatchCreateVariables(ctx context.Context, items []map[string]any) (json.RawMessage, error) {
	raw, err := c.call(ctx, MethodBatchCreateVariables, map[string]any{"items": items})
	if err != nil {
		return nil, err
	}
	return orDefault(raw, `{"created":[],"failed":[]}`), nil
}

// BatchUpdateVariables updates many variable values in one request.
func (c *Client) BatchUpdateVariables(ctx context.Context, items []map[string]any) (json.RawMessage, error) {
	raw, err := c.call(ctx, MethodBatchUpdateVariables, map[string]any{"items": items})
	if err != nil {
		return nil, err
	}
	return orDefault(raw, `{"updated":[],"failed":[]}`), nil
}

// DesignToken is one token of a setupDesignTokens request.
type DesignToken struct {
	Name   string         `json:"name"`
	Type   string         `json:"type,omitempty"`
	Value  any            `json:"value,omitempty"`
	Values map[string]any `json:"values,omitempty"`
}

// SetupDesignTokens creates a collection, its modes and tokens atomically.
func (c *Client) SetupDesignTokens(ctx context.Context, collection string, modes []string, tokens []DesignToken) (json.RawMessage, error) {
	return c.call(ctx, MethodSetupDesignTokens, map[string]any{"collectionName": collection, "modes": modes, "tokens": tokens})
}

// ArrangeComponentSet combines component nodes into a component set.
func (c *Client) ArrangeComponentSet(ctx context.Context, nodeIDs []string) (json.RawMessage, error) {
	raw, err := c.call(ctx, MethodArrangeComponentSet, map[string]any{"nodeIds": nodeIDs})
	if err != nil {
		return nil, err
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data, nil
	}
	return orDefault(raw, `{"nodeId":"","name":""}`), nil
}

func orDefault(raw json.RawMessage, def string) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(def)
	}
	return raw
}

// decodeOptional decodes raw into v, treating null as empty.
func decodeOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
