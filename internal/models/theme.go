package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Reserved document keys
const (
	RootStructureKey = "root"
	StatesKey        = "_states"
	DirectivePrefix  = "_"

	CategoryLayouts    = "layouts"
	CategoryLooks      = "looks"
	CategoryComponents = "components"
)

var themeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ThemeDocument is a parsed and validated theme.
// The raw ordered tree is kept for CSS compilation; components and layouts
// are decoded into their closed variants at load time.
type ThemeDocument struct {
	Name      string
	Variables *Node
	Structure *Node
	Presets   *Node

	root       *Node
	components map[string]*ComponentDefinition
	layouts    map[string]*LayoutDefinition
}

// ComponentDefinition is one entry of the structure map.
// Shorthand definitions carry only a type; object definitions may carry
// placement, identity and store bindings.
type ComponentDefinition struct {
	Key           string          `schema:"key"`
	Shorthand     bool            `schema:"-"`
	Type          string          `schema:"type" validate:"omitempty,css_ident"`
	GridArea      string          `schema:"grid-area" validate:"omitempty,css_value"`
	ID            string          `schema:"id" validate:"omitempty,asset_id"`
	DataSource    string          `schema:"data-source" validate:"omitempty,store_path"`
	DataActions   []ActionBinding `schema:"data-actions" validate:"dive"`
	PresetTargets []string        `schema:"data-preset-targets" validate:"dive,required"`
	Props         *Node           `schema:"props"`
	Style         *Node           `schema:"-"`
}

// ActionBinding maps a component event to a store action path
type ActionBinding struct {
	Event string `schema:"event" validate:"required"`
	Path  string `schema:"path" validate:"required,store_path"`
}

// LayoutDefinition lists the component ids rendered by a layout, in order
type LayoutDefinition struct {
	Name     string   `schema:"name"`
	Children []string `schema:"children" validate:"dive,required"`
}

// PresetRef locates a preset inside the presets map
type PresetRef struct {
	Category string
	ID       string
	Body     *Node
}

// ThemeInfo is a lightweight listing entry
type ThemeInfo struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Cached    bool      `json:"cached"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// StoredTheme is a theme document persisted in the repository
type StoredTheme struct {
	Name      string         `json:"name"`
	Format    DocumentFormat `json:"format"`
	Document  string         `json:"document"`
	IsSystem  bool           `json:"isSystem"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ParseThemeDocument decodes raw bytes and builds a validated document
func ParseThemeDocument(name string, data []byte, format DocumentFormat) (*ThemeDocument, error) {
	root, err := ParseNode(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse theme %s: %w", name, err)
	}
	return NewThemeDocument(name, root)
}

// NewThemeDocument builds the typed views over root and validates them
func NewThemeDocument(name string, root *Node) (*ThemeDocument, error) {
	var errs SchemaErrors
	if !root.IsObject() {
		return nil, SchemaErrors{{Path: "$", Reason: "theme document must be an object"}}
	}

	doc := &ThemeDocument{
		Name:       name,
		root:       root,
		components: make(map[string]*ComponentDefinition),
		layouts:    make(map[string]*LayoutDefinition),
	}

	for _, section := range []string{"variables", "structure", "presets"} {
		if v := root.Get(section); v != nil && !v.IsObject() {
			errs = append(errs, &SchemaError{Path: section, Reason: "must be an object"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	doc.Variables = root.Get("variables")
	doc.Structure = root.Get("structure")
	doc.Presets = root.Get("presets")

	for _, key := range doc.Structure.Keys() {
		if key == RootStructureKey {
			continue
		}
		def, defErrs := decodeComponent(key, doc.Structure.Get(key))
		errs = append(errs, defErrs...)
		if def != nil {
			doc.components[key] = def
		}
	}

	for _, category := range doc.Presets.Keys() {
		body := doc.Presets.Get(category)
		if !body.IsObject() {
			errs = append(errs, &SchemaError{Path: "presets." + category, Reason: "preset category must be an object"})
			continue
		}
		if category != CategoryLayouts {
			continue
		}
		for _, layoutName := range body.Keys() {
			layout, layoutErrs := decodeLayout(layoutName, body.Get(layoutName))
			errs = append(errs, layoutErrs...)
			if layout != nil {
				doc.layouts[layoutName] = layout
			}
		}
	}

	errs = append(errs, validateDocument(doc)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

func decodeComponent(key string, n *Node) (*ComponentDefinition, SchemaErrors) {
	path := "structure." + key
	if s, ok := n.Text(); ok {
		return &ComponentDefinition{Key: key, Shorthand: true, Type: s}, nil
	}
	if !n.IsObject() {
		return nil, SchemaErrors{{Path: path, Reason: "component definition must be a type string or an object"}}
	}

	var errs SchemaErrors
	def := &ComponentDefinition{Key: key, Style: n}

	text := func(field string) string {
		v := n.Get(field)
		if v == nil {
			return ""
		}
		s, ok := v.Text()
		if !ok {
			errs = append(errs, &SchemaError{Path: path + "." + field, Reason: "must be a string"})
		}
		return s
	}

	def.Type = text("type")
	if def.Type == "" {
		def.Type = text("data-component")
	}
	def.GridArea = text("grid-area")
	def.ID = text("id")
	def.DataSource = text("data-source")

	if actions := n.Get("data-actions"); actions != nil {
		if !actions.IsObject() {
			errs = append(errs, &SchemaError{Path: path + ".data-actions", Reason: "must be an object of event to store path"})
		}
		for _, event := range actions.Keys() {
			target, ok := actions.Get(event).Text()
			if !ok {
				errs = append(errs, &SchemaError{Path: path + ".data-actions." + event, Reason: "must be a store path string"})
				continue
			}
			def.DataActions = append(def.DataActions, ActionBinding{Event: event, Path: target})
		}
	}

	if targets := n.Get("data-preset-targets"); targets != nil {
		list, ok := targets.Strings()
		if !ok {
			errs = append(errs, &SchemaError{Path: path + ".data-preset-targets", Reason: "must be a string or a list of strings"})
		}
		def.PresetTargets = list
	}

	if props := n.Get("props"); props != nil {
		if !props.IsObject() {
			errs = append(errs, &SchemaError{Path: path + ".props", Reason: "must be an object"})
		} else {
			def.Props = props
		}
	}

	return def, errs
}

func decodeLayout(name string, n *Node) (*LayoutDefinition, SchemaErrors) {
	if !n.IsObject() {
		return nil, nil
	}
	layout := &LayoutDefinition{Name: name}
	children := n.Get("children")
	if children == nil {
		return layout, nil
	}
	if !children.IsArray() {
		return nil, SchemaErrors{{Path: "presets.layouts." + name + ".children", Reason: "must be a list of component ids"}}
	}
	list, ok := children.Strings()
	if !ok {
		return nil, SchemaErrors{{Path: "presets.layouts." + name + ".children", Reason: "component ids must be strings"}}
	}
	layout.Children = list
	return layout, nil
}

// Root returns the full ordered document tree
func (d *ThemeDocument) Root() *Node {
	return d.root
}

// Layout returns the layout preset named name
func (d *ThemeDocument) Layout(name string) (*LayoutDefinition, bool) {
	l, ok := d.layouts[name]
	return l, ok
}

// LayoutNames returns layout names in document order
func (d *ThemeDocument) LayoutNames() []string {
	layouts := d.Presets.Get(CategoryLayouts)
	names := make([]string, 0, len(d.layouts))
	for _, k := range layouts.Keys() {
		if _, ok := d.layouts[k]; ok {
			names = append(names, k)
		}
	}
	return names
}

// Component returns the structure entry for id. The root block is never a component.
func (d *ThemeDocument) Component(id string) (*ComponentDefinition, bool) {
	c, ok := d.components[id]
	return c, ok
}

// ComponentIDs returns component ids in document order
func (d *ThemeDocument) ComponentIDs() []string {
	ids := make([]string, 0, len(d.components))
	for _, k := range d.Structure.Keys() {
		if _, ok := d.components[k]; ok {
			ids = append(ids, k)
		}
	}
	return ids
}

// FindPreset searches every preset category in document order and returns
// the first object preset named id.
func (d *ThemeDocument) FindPreset(id string) (PresetRef, bool) {
	for _, category := range d.Presets.Keys() {
		body := d.Presets.Get(category).Get(id)
		if body.IsObject() {
			return PresetRef{Category: category, ID: id, Body: body}, true
		}
	}
	return PresetRef{}, false
}

// PresetIDs returns every object preset id once, in document order
func (d *ThemeDocument) PresetIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, category := range d.Presets.Keys() {
		body := d.Presets.Get(category)
		for _, id := range body.Keys() {
			if seen[id] || !body.Get(id).IsObject() {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// ValidateThemeName checks that a theme name is safe to use in paths and selectors
func ValidateThemeName(name string) error {
	if !themeNamePattern.MatchString(name) {
		return ErrInvalidThemeName
	}
	return nil
}

// ThemeStyleID is the stable stylesheet id of a compiled theme
func ThemeStyleID(name string) string {
	return name + "-theme-styles"
}

// PresetStyleID is the stable stylesheet id of an asset's preset variables
func PresetStyleID(assetID string) string {
	return "preset-vars-" + assetID
}

// SchemaError describes one schema violation found while loading a document
type SchemaError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// SchemaErrors aggregates every violation of one document
type SchemaErrors []*SchemaError

func (e SchemaErrors) Error() string {
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return "invalid theme document: " + strings.Join(parts, "; ")
}

// Common theme-related errors
var (
	ErrInvalidThemeName = fmt.Errorf("theme name must match %s", themeNamePattern.String())
	ErrThemeNotFound    = fmt.Errorf("theme not found")
	ErrSystemThemeEdit  = fmt.Errorf("system themes cannot be modified")
	ErrEmptyDocument    = fmt.Errorf("theme document is empty")
)
