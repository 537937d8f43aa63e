package models

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"
)

// Renderer writes the markup of one resolved component
type Renderer interface {
	Name() string
	Render(w io.Writer, node *RenderNode) error
}

// RenderResult is the resolved view: a container and its wrapper nodes in layout order
type RenderResult struct {
	Theme   string        `json:"theme"`
	View    string        `json:"view"`
	Classes []string      `json:"classes"`
	Nodes   []*RenderNode `json:"nodes"`
}

// RenderNode is one placed component
type RenderNode struct {
	Key           string         `json:"key"`
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	GridArea      string         `json:"gridArea"`
	Classes       []string       `json:"classes"`
	Renderer      Renderer       `json:"-"`
	RendererName  string         `json:"renderer"`
	Placeholder   bool           `json:"placeholder"`
	Props         map[string]any `json:"props"`
	PresetTargets []string       `json:"presetTargets,omitempty"`
}

// ClassName joins the wrapper classes with spaces
func (n *RenderNode) ClassName() string {
	return strings.Join(n.Classes, " ")
}

// PropNames returns the prop names in sorted order
func (n *RenderNode) PropNames() []string {
	names := make([]string, 0, len(n.Props))
	for k := range n.Props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// BoundAction is a store action resolved for a component event
type BoundAction struct {
	Store string
	Name  string
	Fn    any
}

// MarshalJSON encodes the action by its store path; functions are not serializable
func (a BoundAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Store + "." + a.Name)
}

// VariableMap is an insertion-ordered set of custom properties.
// Overwriting a name keeps its first position.
type VariableMap struct {
	names  []string
	values map[string]string
}

// NewVariableMap creates an empty map
func NewVariableMap() *VariableMap {
	return &VariableMap{values: make(map[string]string)}
}

// Set stores value under name
func (m *VariableMap) Set(name, value string) {
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = value
}

// Get returns the value stored under name
func (m *VariableMap) Get(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Names returns variable names in insertion order
func (m *VariableMap) Names() []string {
	return m.names
}

// Len returns the number of variables
func (m *VariableMap) Len() int {
	return len(m.names)
}

// Map returns a plain copy of the variables
func (m *VariableMap) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the variables in insertion order
func (m *VariableMap) MarshalJSON() ([]byte, error) {
	obj := NewObject()
	for _, name := range m.names {
		obj.Set(name, NewString(m.values[name]))
	}
	return obj.MarshalJSON()
}

// Stylesheet is one named fragment of the global style area
type Stylesheet struct {
	ID        string    `json:"id"`
	CSS       string    `json:"css"`
	UpdatedAt time.Time `json:"updatedAt"`
}
