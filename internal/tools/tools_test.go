package tools

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaspardpetit/fmcp-bridge/internal/bridge"
	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
)

type fakePlugin struct {
	mu        sync.Mutex
	connected bool
	replies   map[string]func(params json.RawMessage) (json.RawMessage, error)
	calls     []string
}

func newFakePlugin() *fakePlugin {
	return &fakePlugin{connected: true, replies: map[string]func(json.RawMessage) (json.RawMessage, error){}}
}

func (f *fakePlugin) reply(method, raw string) {
	f.replies[method] = func(json.RawMessage) (json.RawMessage, error) { return json.RawMessage(raw), nil }
}

func (f *fakePlugin) Submit(_ context.Context, method string, params any, _ time.Duration) (json.RawMessage, error) {
	b, _ := json.Marshal(params)
	f.mu.Lock()
	f.calls = append(f.calls, method)
	h := f.replies[method]
	f.mu.Unlock()
	if h == nil {
		return json.RawMessage("null"), nil
	}
	return h(b)
}

func (f *fakePlugin) IsConnected() bool { return f.connected }

func newSet(f *fakePlugin) *Set {
	s := New(designtool.New(f, 0), func() bridge.Snapshot {
		return bridge.Snapshot{Connected: f.connected, Port: 5454}
	})
	s.pollInterval = 10 * time.Millisecond
	return s
}

func callTool(t *testing.T, s *Set, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	for _, st := range s.Tools() {
		if st.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := st.Handler(context.Background(), req)
		require.NoError(t, err)
		require.NotEmpty(t, res.Content)
		text, ok := res.Content[0].(mcp.TextContent)
		require.True(t, ok)
		return res, text.Text
	}
	t.Fatalf("tool %s not registered", name)
	return nil, ""
}

func TestToolNamesUnique(t *testing.T) {
	s := newSet(newFakePlugin())
	seen := map[string]bool{}
	for _, st := range s.Tools() {
		require.False(t, seen[st.Tool.Name], "duplicate %s", st.Tool.Name)
		seen[st.Tool.Name] = true
	}
	for _, name := range []string{
		"figma_get_status", "figma_get_file_data", "figma_get_design_context", "figma_get_variables",
		"figma_get_component", "figma_get_component_for_development", "figma_get_styles", "figma_execute",
		"figma_capture_screenshot", "figma_get_component_image", "figma_get_metadata",
		"figma_get_design_system_summary", "figma_search_components", "figma_set_instance_properties",
		"figma_update_variable", "figma_create_variable", "figma_create_variable_collection",
		"figma_delete_variable", "figma_delete_variable_collection", "figma_rename_variable",
		"figma_add_mode", "figma_rename_mode", "figma_refresh_variables", "figma_batch_create_variables",
		"figma_batch_update_variables", "figma_setup_design_tokens", "figma_instantiate_component",
		"figma_set_description", "figma_arrange_component_set", "figma_get_console_logs",
		"figma_watch_console", "figma_clear_console", "figma_check_design_parity", "figma_get_token_browser",
	} {
		assert.True(t, seen[name], "missing %s", name)
	}
}

func TestNotConnectedHint(t *testing.T) {
	f := newFakePlugin()
	f.connected = false
	res, text := callTool(t, newSet(f), "figma_get_file_data", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, text, NotConnectedMessage)
	assert.Empty(t, f.calls)

	res, text = callTool(t, newSet(f), "figma_get_status", nil)
	assert.False(t, res.IsError)
	assert.Contains(t, text, `"pluginConnected":false`)
}

func TestNotConnectedRaceUsesHint(t *testing.T) {
	f := newFakePlugin()
	f.replies[designtool.MethodGetComponentFromPluginUI] = func(json.RawMessage) (json.RawMessage, error) {
		return nil, bridge.ErrNotConnected
	}
	res, text := callTool(t, newSet(f), "figma_get_component", map[string]any{"nodeId": "1:2"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "not connected")
}

func TestPassthroughRendering(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetDocumentStructure, `{"document":{"id":"0:0"}}`)
	f.reply(designtool.MethodExecuteCodeViaUI, `"done"`)
	s := newSet(f)

	_, text := callTool(t, s, "figma_get_file_data", map[string]any{"depth": 9})
	assert.JSONEq(t, `{"document":{"id":"0:0"}}`, text)

	_, text = callTool(t, s, "figma_execute", map[string]any{"code": "return 1"})
	assert.Equal(t, "done", text)

	_, text = callTool(t, s, "figma_get_component", map[string]any{"nodeId": "1:2"})
	assert.JSONEq(t, `{"success":false,"error":"No data from plugin"}`, text)
}

func TestPeerErrorSurfacesVerbatim(t *testing.T) {
	f := newFakePlugin()
	f.replies[designtool.MethodDeleteVariable] = func(json.RawMessage) (json.RawMessage, error) {
		return nil, &bridge.PeerError{Method: designtool.MethodDeleteVariable, Message: "Variable V9 not found"}
	}
	res, text := callTool(t, newSet(f), "figma_delete_variable", map[string]any{"variableId": "V9"})
	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"success":false,"error":"Variable V9 not found"}`, text)
}

func TestMissingRequiredArgument(t *testing.T) {
	f := newFakePlugin()
	res, _ := callTool(t, newSet(f), "figma_rename_mode", map[string]any{"collectionId": "C1"})
	assert.True(t, res.IsError)
	assert.Empty(t, f.calls)
}

const variablesReply = `{
	"variables":[
		{"id":"V1","name":"color/primary","resolvedType":"COLOR","variableCollectionId":"C1","valuesByMode":{"m1":{"r":0,"g":0.4,"b":0.8,"a":1}},"scopes":["ALL_FILLS"]},
		{"id":"V2","name":"spacing/md","resolvedType":"FLOAT","variableCollectionId":"C1","valuesByMode":{"m1":16}}
	],
	"variableCollections":[{"id":"C1","name":"Brand","modes":[{"modeId":"m1","name":"Light"}],"variableIds":["V1","V2"]}]
}`

func TestGetVariablesVerbosity(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetVariablesFromPluginUI, variablesReply)
	s := newSet(f)

	_, text := callTool(t, s, "figma_get_variables", map[string]any{"verbosity": "inventory"})
	assert.JSONEq(t, `{"success":true,"source":"plugin","variables":[{"id":"V1","name":"color/primary"},{"id":"V2","name":"spacing/md"}],"variableCollections":[{"id":"C1","name":"Brand"}]}`, text)

	_, text = callTool(t, s, "figma_get_variables", map[string]any{"verbosity": "full"})
	assert.Contains(t, text, `"scopes":["ALL_FILLS"]`)

	_, text = callTool(t, s, "figma_get_variables", nil)
	assert.NotContains(t, text, "scopes")
	assert.Contains(t, text, `"resolvedType":"FLOAT"`)
}

func TestSearchComponents(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetLocalComponents, `{"data":{"components":[{"id":"1:1","name":"Button/Primary","type":"COMPONENT"},{"id":"1:2","name":"Card","type":"COMPONENT"}],"componentSets":[{"id":"2:1","name":"Button","type":"COMPONENT_SET"}],"totalComponents":2,"totalComponentSets":1}}`)
	s := newSet(f)

	_, text := callTool(t, s, "figma_search_components", map[string]any{"query": "button"})
	var out struct {
		Components []designtool.ComponentSummary `json:"components"`
		Total      int                           `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, "1:1", out.Components[0].ID)
	assert.Equal(t, "2:1", out.Components[1].ID)

	_, text = callTool(t, s, "figma_search_components", map[string]any{"limit": 1})
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, 3, out.Total)
	assert.Len(t, out.Components, 1)
}

func TestDesignSystemSummary(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetVariablesFromPluginUI, variablesReply)
	f.reply(designtool.MethodGetLocalComponents, `{"data":{"components":[],"componentSets":[],"totalComponents":12,"totalComponentSets":3}}`)
	_, text := callTool(t, newSet(f), "figma_get_design_system_summary", nil)
	assert.JSONEq(t, `{"success":true,"source":"plugin","variableCollections":[{"id":"C1","name":"Brand","variableCount":2}],"components":12,"componentSets":3}`, text)
}

func TestComponentForDevelopment(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetComponentFromPluginUI, `{"success":true,"component":{"id":"1:1","name":"Button"}}`)
	f.reply(designtool.MethodCaptureScreenshot, `{"success":true,"image":"iVBOR"}`)
	_, text := callTool(t, newSet(f), "figma_get_component_for_development", map[string]any{"nodeId": "1:1"})
	assert.JSONEq(t, `{"success":true,"component":{"id":"1:1","name":"Button"},"image":"iVBOR"}`, text)
}

func TestDesignParity(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetVariablesFromPluginUI, variablesReply)
	f.reply(designtool.MethodGetLocalStyles, `{"paintStyles":[{"id":"S1","name":"bg","paints":[{"type":"SOLID","color":{"r":1,"g":1,"b":1}}]}],"textStyles":[{"id":"S2","name":"h1","style":{"fontSize":32}}]}`)
	s := newSet(f)

	_, text := callTool(t, s, "figma_check_design_parity", map[string]any{
		"codeTokens": `{"color/primary":"#0066CC","spacing/md":{"value":12},"bg":"#ffffff","radius":4}`,
	})
	var out struct {
		Summary   map[string]int `json:"summary"`
		Divergent []tokenDiff    `json:"divergent"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, map[string]int{"matching": 2, "divergent": 1, "inFigmaOnly": 1, "inCodeOnly": 1}, out.Summary)
	require.Len(t, out.Divergent, 1)
	assert.Equal(t, tokenDiff{Name: "spacing/md", FigmaValue: "16", CodeValue: "12"}, out.Divergent[0])

	_, text = callTool(t, s, "figma_check_design_parity", nil)
	assert.Contains(t, text, `"figmaTokenCount":4`)

	res, text := callTool(t, s, "figma_check_design_parity", map[string]any{"codeTokens": "{nope"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "codeTokens must be valid JSON")
}

func TestTokenBrowser(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetVariablesFromPluginUI, variablesReply)
	f.reply(designtool.MethodGetLocalStyles, `{"paintStyles":[],"textStyles":[{"id":"S2","name":"h1","fontSize":32,"fontName":{"family":"Inter"}}]}`)
	_, text := callTool(t, newSet(f), "figma_get_token_browser", nil)
	assert.Contains(t, text, `"modes":[{"id":"m1","name":"Light"}]`)
	assert.Contains(t, text, `"fontName":{"family":"Inter"}`)
	assert.Contains(t, text, `"name":"spacing/md"`)
}

func TestWatchConsoleDeduplicates(t *testing.T) {
	f := newFakePlugin()
	f.reply(designtool.MethodGetConsoleLogs, `{"data":{"logs":[{"level":"log","time":1,"args":["a"]},{"level":"warn","time":2,"args":["b"]}],"total":2}}`)
	_, text := callTool(t, newSet(f), "figma_watch_console", map[string]any{"timeoutSeconds": 1})
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, 2, out.Count)
	assert.Greater(t, len(f.calls), 1)
}

func TestBatchValidation(t *testing.T) {
	f := newFakePlugin()
	s := newSet(f)
	res, text := callTool(t, s, "figma_batch_update_variables", map[string]any{
		"items": []any{map[string]any{"variableId": "V1"}},
	})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "items[0].modeId")

	f.reply(designtool.MethodBatchUpdateVariables, `{"updated":["V1"],"failed":[]}`)
	_, text = callTool(t, s, "figma_batch_update_variables", map[string]any{
		"items": []any{map[string]any{"variableId": "V1", "modeId": "m1", "value": 3}},
	})
	assert.JSONEq(t, `{"success":true,"updated":["V1"],"failed":[]}`, text)
}

func TestArrangeComponentSetNeedsTwoNodes(t *testing.T) {
	f := newFakePlugin()
	res, _ := callTool(t, newSet(f), "figma_arrange_component_set", map[string]any{"nodeIds": []any{"1:1"}})
	assert.True(t, res.IsError)
	assert.Empty(t, f.calls)
}
