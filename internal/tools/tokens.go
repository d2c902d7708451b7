package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
)

func (t *Set) tokenTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("figma_check_design_parity",
				mcp.WithDescription(`Compare Figma design tokens (variables and styles) with code-side tokens. Returns matching, inFigmaOnly, inCodeOnly and divergent entries. codeTokens is a JSON string such as {"primary": "#0066cc", "spacing.md": 16} or {"primary": {"value": "#0066cc"}}.`),
				mcp.WithString("codeTokens"),
			),
			Handler: t.guarded(t.designParity),
		},
		{
			Tool: mcp.NewTool("figma_get_token_browser",
				mcp.WithDescription("Hierarchical view of design tokens: variable collections with modes and variables, plus paint and text styles."),
				mcp.WithString("verbosity", mcp.Enum("summary", "full"), mcp.DefaultString("summary")),
			),
			Handler: t.guarded(t.tokenBrowser),
		},
	}
}

func (t *Set) fetchTokens(ctx context.Context, verbosity string) (*designtool.VariablesPayload, *designtool.StylesPayload, error) {
	var (
		vars   *designtool.VariablesPayload
		styles *designtool.StylesPayload
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vars, err = t.client.GetVariables(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		styles, err = t.client.GetLocalStyles(gctx, verbosity)
		return err
	})
	return vars, styles, g.Wait()
}

type tokenValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type tokenDiff struct {
	Name       string `json:"name"`
	FigmaValue string `json:"figmaValue"`
	CodeValue  string `json:"codeValue"`
}

func (t *Set) designParity(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	vars, styles, err := t.fetchTokens(ctx, "full")
	if err != nil {
		return nil, err
	}
	figma := figmaTokens(vars, styles)

	codeTokens := strings.TrimSpace(req.GetString("codeTokens", ""))
	if codeTokens == "" {
		return map[string]any{
			"success":         true,
			"source":          "figma_only",
			"message":         "No codeTokens provided. Listing Figma tokens only. Pass codeTokens (JSON string) for parity comparison.",
			"figmaTokenCount": len(figma),
			"figmaTokens":     sortedTokens(figma),
		}, nil
	}
	code, err := parseCodeTokens(codeTokens)
	if err != nil {
		return nil, err
	}

	matching, inFigmaOnly, inCodeOnly := []tokenValue{}, []tokenValue{}, []tokenValue{}
	divergent := []tokenDiff{}
	for _, tv := range sortedTokens(figma) {
		cv, ok := code[tv.Name]
		switch {
		case !ok:
			inFigmaOnly = append(inFigmaOnly, tv)
		case compareKey(tv.Value) == compareKey(cv):
			matching = append(matching, tv)
		default:
			divergent = append(divergent, tokenDiff{Name: tv.Name, FigmaValue: tv.Value, CodeValue: cv})
		}
	}
	for _, cv := range sortedTokens(code) {
		if _, ok := figma[cv.Name]; !ok {
			inCodeOnly = append(inCodeOnly, cv)
		}
	}
	return map[string]any{
		"success": true,
		"summary": map[string]int{
			"matching":    len(matching),
			"divergent":   len(divergent),
			"inFigmaOnly": len(inFigmaOnly),
			"inCodeOnly":  len(inCodeOnly),
		},
		"matching":    matching,
		"divergent":   divergent,
		"inFigmaOnly": inFigmaOnly,
		"inCodeOnly":  inCodeOnly,
	}, nil
}

// figmaTokens flattens variables (first mode value), paint styles (first
// solid fill) and text styles (font size) into name -> normalized value.
func figmaTokens(vars *designtool.VariablesPayload, styles *designtool.StylesPayload) map[string]string {
	out := map[string]string{}
	for _, v := range vars.Variables {
		name := v.Name
		if name == "" {
			name = v.ID
		}
		out[name] = firstModeValue(v.ValuesByMode)
	}
	for _, s := range styles.PaintStyles {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		value := ""
		for _, p := range s.Paints {
			if p.Type == "SOLID" && p.Color != nil {
				value = rgbaToHex(*p.Color)
				break
			}
		}
		out[name] = value
	}
	for _, s := range styles.TextStyles {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		value := ""
		if size := s.Size(); size != nil {
			value = strconv.FormatFloat(*size, 'f', -1, 64)
		}
		out[name] = value
	}
	return out
}

// firstModeValue picks the value of the lowest mode key so the result is
// stable across calls.
func firstModeValue(values map[string]json.RawMessage) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return normalizeToken(values[keys[0]])
}

func parseCodeTokens(s string) (map[string]string, error) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, fmt.Errorf("codeTokens must be valid JSON")
	}
	out := make(map[string]string, len(parsed))
	for k, raw := range parsed {
		var wrapped struct {
			Value json.RawMessage `json:"value"`
		}
		if json.Unmarshal(raw, &wrapped) == nil && len(wrapped.Value) > 0 {
			out[k] = normalizeToken(wrapped.Value)
			continue
		}
		out[k] = normalizeToken(raw)
	}
	return out, nil
}

// normalizeToken renders a token value as text: colors as #rrggbb, numbers
// and booleans literally, strings trimmed.
func normalizeToken(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v == nil {
		return ""
	}
	switch x := v.(type) {
	case map[string]any:
		if _, ok := x["r"]; ok {
			var c designtool.RGBA
			_ = json.Unmarshal(raw, &c)
			return rgbaToHex(c)
		}
		return string(raw)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strings.TrimSpace(x)
	default:
		return strings.TrimSpace(string(raw))
	}
}

func rgbaToHex(c designtool.RGBA) string {
	channel := func(f float64) int { return int(math.Round(f * 255)) }
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func compareKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

func sortedTokens(m map[string]string) []tokenValue {
	out := make([]tokenValue, 0, len(m))
	for k, v := range m {
		out = append(out, tokenValue{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *Set) tokenBrowser(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	full := req.GetString("verbosity", "summary") == "full"
	styleVerbosity := "summary"
	if full {
		styleVerbosity = "full"
	}
	vars, styles, err := t.fetchTokens(ctx, styleVerbosity)
	if err != nil {
		return nil, err
	}

	type browserCollection struct {
		ID        string           `json:"id"`
		Name      string           `json:"name"`
		Modes     []map[string]any `json:"modes"`
		Variables []map[string]any `json:"variables"`
	}
	byID := map[string]*browserCollection{}
	order := make([]*browserCollection, 0, len(vars.VariableCollections))
	for _, c := range vars.VariableCollections {
		bc := &browserCollection{ID: c.ID, Name: c.Name, Modes: []map[string]any{}, Variables: []map[string]any{}}
		for _, m := range c.Modes {
			bc.Modes = append(bc.Modes, map[string]any{"id": m.Key(), "name": m.Name})
		}
		byID[c.ID] = bc
		order = append(order, bc)
	}
	for _, v := range vars.Variables {
		bc := byID[v.VariableCollectionID]
		if bc == nil {
			continue
		}
		entry := map[string]any{"id": v.ID, "name": v.Name, "resolvedType": v.ResolvedType, "valuesByMode": v.ValuesByMode}
		if v.Description != "" {
			entry["description"] = v.Description
		}
		if full {
			entry["scopes"] = v.Scopes
		}
		bc.Variables = append(bc.Variables, entry)
	}

	paints := make([]any, 0, len(styles.PaintStyles))
	for _, s := range styles.PaintStyles {
		if full {
			paints = append(paints, s.Raw)
		} else {
			paints = append(paints, map[string]any{"id": s.ID, "name": s.Name, "paints": s.Paints})
		}
	}
	texts := make([]any, 0, len(styles.TextStyles))
	for _, s := range styles.TextStyles {
		if full {
			texts = append(texts, s.Raw)
		} else {
			texts = append(texts, map[string]any{"id": s.ID, "name": s.Name, "fontSize": s.Size(), "fontName": s.Font()})
		}
	}
	return map[string]any{
		"success": true,
		"source":  "plugin",
		"tokenBrowser": map[string]any{
			"variableCollections": order,
			"paintStyles":         paints,
			"textStyles":          texts,
		},
	}, nil
}
