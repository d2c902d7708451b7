package designtool

import "encoding/json"

// Variable is one design variable. Unknown fields are kept in Raw for
// verbatim passthrough.
type Variable struct {
	ID                   string                     `json:"id"`
	Name                 string                     `json:"name"`
	ResolvedType         string                     `json:"resolvedType,omitempty"`
	VariableCollectionID string                     `json:"variableCollectionId,omitempty"`
	Description          string                     `json:"description,omitempty"`
	ValuesByMode         map[string]json.RawMessage `json:"valuesByMode,omitempty"`
	Scopes               []string                   `json:"scopes,omitempty"`
	Raw                  json.RawMessage            `json:"-"`
}

func (v *Variable) UnmarshalJSON(b []byte) error {
	type plain Variable
	if err := json.Unmarshal(b, (*plain)(v)); err != nil {
		return err
	}
	v.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type Mode struct {
	ModeID string `json:"modeId,omitempty"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
}

// Key returns whichever mode identifier the plugin filled in.
func (m Mode) Key() string {
	if m.ModeID != "" {
		return m.ModeID
	}
	return m.ID
}

type VariableCollection struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Modes       []Mode          `json:"modes,omitempty"`
	VariableIDs []string        `json:"variableIds,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

func (c *VariableCollection) UnmarshalJSON(b []byte) error {
	type plain VariableCollection
	if err := json.Unmarshal(b, (*plain)(c)); err != nil {
		return err
	}
	c.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// VariablesPayload is the reply to getVariablesFromPluginUI.
type VariablesPayload struct {
	Variables           []Variable           `json:"variables"`
	VariableCollections []VariableCollection `json:"variableCollections"`
}

// Paint is a fill entry of a paint style.
type Paint struct {
	Type  string `json:"type"`
	Color *RGBA  `json:"color,omitempty"`
}

type RGBA struct {
	R float64  `json:"r"`
	G float64  `json:"g"`
	B float64  `json:"b"`
	A *float64 `json:"a,omitempty"`
}

type PaintStyle struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Paints []Paint         `json:"paints,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

func (s *PaintStyle) UnmarshalJSON(b []byte) error {
	type plain PaintStyle
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	s.Raw = append(json.RawMessage(nil), b...)
	return nil
}

type TextStyle struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	FontSize *float64        `json:"fontSize,omitempty"`
	FontName json.RawMessage `json:"fontName,omitempty"`
	Style    *struct {
		FontSize *float64        `json:"fontSize,omitempty"`
		FontName json.RawMessage `json:"fontName,omitempty"`
	} `json:"style,omitempty"`
	Raw json.RawMessage `json:"-"`
}

func (s *TextStyle) UnmarshalJSON(b []byte) error {
	type plain TextStyle
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	s.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// Size returns the font size from either the flat or nested shape.
func (s TextStyle) Size() *float64 {
	if s.FontSize != nil {
		return s.FontSize
	}
	if s.Style != nil {
		return s.Style.FontSize
	}
	return nil
}

// Font returns the font name from either the flat or nested shape.
func (s TextStyle) Font() json.RawMessage {
	if len(s.FontName) > 0 {
		return s.FontName
	}
	if s.Style != nil {
		return s.Style.FontName
	}
	return nil
}

// StylesPayload is the reply to getLocalStyles.
type StylesPayload struct {
	PaintStyles []PaintStyle    `json:"paintStyles"`
	TextStyles  []TextStyle     `json:"textStyles"`
	Raw         json.RawMessage `json:"-"`
}

type ComponentSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Key  string `json:"key,omitempty"`
}

// ComponentsPayload is the reply to getLocalComponents.
type ComponentsPayload struct {
	Data *struct {
		Components         []ComponentSummary `json:"components"`
		ComponentSets      []ComponentSummary `json:"componentSets"`
		TotalComponents    int                `json:"totalComponents"`
		TotalComponentSets int                `json:"totalComponentSets"`
	} `json:"data"`
}

// All returns components followed by component sets.
func (p *ComponentsPayload) All() []ComponentSummary {
	if p == nil || p.Data == nil {
		return nil
	}
	out := make([]ComponentSummary, 0, len(p.Data.Components)+len(p.Data.ComponentSets))
	out = append(out, p.Data.Components...)
	return append(out, p.Data.ComponentSets...)
}

type ConsoleEntry struct {
	Level string            `json:"level"`
	Time  float64           `json:"time"`
	Args  []json.RawMessage `json:"args"`
}

type ConsoleLogs struct {
	Logs  []ConsoleEntry `json:"logs"`
	Total int            `json:"total"`
}
