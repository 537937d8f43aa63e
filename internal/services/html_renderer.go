package services

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/themeflow/server/internal/models"
)

// HTMLRenderer writes render results as HTML
type HTMLRenderer struct {
	page *template.Template
}

// NewHTMLRenderer creates an HTML renderer
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{page: pageTemplate}
}

type wrapperView struct {
	Node  *models.RenderNode
	Class string
	Inner template.HTML
}

type pageView struct {
	Title          string
	StylesheetHref string
	Scope          string
	Container      string
	Wrappers       []wrapperView
}

// RenderFragment writes the container and its wrappers. A result without
// container classes writes nothing.
func (h *HTMLRenderer) RenderFragment(w io.Writer, result *models.RenderResult) error {
	view, err := h.view(result, "")
	if err != nil {
		return err
	}
	if view.Container == "" {
		return nil
	}
	return h.page.ExecuteTemplate(w, "container", view)
}

// RenderPage writes a complete document for result, linking stylesheetHref
func (h *HTMLRenderer) RenderPage(w io.Writer, result *models.RenderResult, stylesheetHref string) error {
	view, err := h.view(result, stylesheetHref)
	if err != nil {
		return err
	}
	return h.page.ExecuteTemplate(w, "page", view)
}

func (h *HTMLRenderer) view(result *models.RenderResult, href string) (*pageView, error) {
	view := &pageView{
		Title:          result.Theme + " / " + result.View,
		StylesheetHref: href,
		Scope:          result.Theme,
	}
	if len(result.Classes) == 0 {
		return view, nil
	}
	view.Container = strings.Join(result.Classes, " ")

	for _, node := range result.Nodes {
		var buf bytes.Buffer
		if node.Renderer != nil {
			if err := node.Renderer.Render(&buf, node); err != nil {
				return nil, fmt.Errorf("render %s (%s): %w", node.Key, node.Type, err)
			}
		}
		view.Wrappers = append(view.Wrappers, wrapperView{
			Node:  node,
			Class: node.ClassName(),
			// Renderer output is produced by html/template and already escaped
			Inner: template.HTML(buf.String()),
		})
	}
	return view, nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if .StylesheetHref}}
<link rel="stylesheet" href="{{.StylesheetHref}}">
{{- end}}
</head>
<body>
<div class="{{.Scope}}">
{{- if .Container}}
{{template "container" .}}
{{- end}}
</div>
</body>
</html>
{{define "container"}}<div class="{{.Container}}">
{{- range .Wrappers}}
<div class="{{.Class}}" style="grid-area: {{.Node.GridArea}}" data-component="{{.Node.Type}}" data-id="{{.Node.ID}}">{{.Inner}}</div>
{{- end}}
</div>{{end}}`))
