package services

import (
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/themeflow/server/internal/models"
)

// ComponentRegistry maps component types to renderers
type ComponentRegistry struct {
	mu          sync.RWMutex
	renderers   map[string]models.Renderer
	placeholder models.Renderer
}

// NewComponentRegistry creates a registry whose fallback renders a bare div
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		renderers:   make(map[string]models.Renderer),
		placeholder: placeholderRenderer{},
	}
}

// Register binds typ to r, replacing any previous renderer
func (c *ComponentRegistry) Register(typ string, r models.Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers[typ] = r
}

// RegisterTemplate parses text as an html/template and registers it for typ
func (c *ComponentRegistry) RegisterTemplate(typ, text string) error {
	tmpl, err := template.New(typ).Parse(text)
	if err != nil {
		return fmt.Errorf("parse template for %s: %w", typ, err)
	}
	c.Register(typ, &TemplateRenderer{name: typ, tmpl: tmpl})
	return nil
}

// Lookup returns the renderer registered for typ
func (c *ComponentRegistry) Lookup(typ string) (models.Renderer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.renderers[typ]
	return r, ok
}

// Placeholder returns the fallback renderer for unknown types
func (c *ComponentRegistry) Placeholder() models.Renderer {
	return c.placeholder
}

type placeholderRenderer struct{}

func (placeholderRenderer) Name() string { return "div" }

func (placeholderRenderer) Render(w io.Writer, node *models.RenderNode) error {
	return placeholderTemplate.Execute(w, node)
}

var placeholderTemplate = template.Must(template.New("placeholder").Parse(
	`<div id="{{.ID}}" data-component="{{.Type}}"></div>`))

// TemplateRenderer renders a component through an html/template.
// The template receives the RenderNode; props are available as .Props.
type TemplateRenderer struct {
	name string
	tmpl *template.Template
}

// Name returns the component type the template renders
func (t *TemplateRenderer) Name() string { return t.name }

// Render executes the template for node
func (t *TemplateRenderer) Render(w io.Writer, node *models.RenderNode) error {
	return t.tmpl.Execute(w, node)
}
