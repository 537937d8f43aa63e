package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTheme = `{
  "variables": {"colors": {"primary": "#333"}},
  "structure": {
    "root": {"display": "grid"},
    "header": "toolbar",
    "canvas": {
      "data-component": "canvas",
      "grid-area": "main",
      "id": "main-canvas",
      "data-source": "oneStore.assets",
      "data-actions": {"onSelect": "oneStore.selectAsset"},
      "data-preset-targets": ["card"],
      "props": {"zoom": 2}
    }
  },
  "presets": {
    "layouts": {"dashboard": {"children": ["header", "canvas"]}, "empty": {}},
    "looks": {"card": {"borderRadius": "4px"}},
    "components": {"card": {"panel": {"padding": "2px"}}}
  }
}`

func TestParseThemeDocument(t *testing.T) {
	t.Run("decodes components and layouts", func(t *testing.T) {
		doc, err := ParseThemeDocument("ui", []byte(sampleTheme), FormatJSON)
		require.NoError(t, err)

		assert.Equal(t, []string{"header", "canvas"}, doc.ComponentIDs())

		header, ok := doc.Component("header")
		require.True(t, ok)
		assert.True(t, header.Shorthand)
		assert.Equal(t, "toolbar", header.Type)

		canvas, ok := doc.Component("canvas")
		require.True(t, ok)
		assert.Equal(t, "canvas", canvas.Type)
		assert.Equal(t, "main", canvas.GridArea)
		assert.Equal(t, "main-canvas", canvas.ID)
		assert.Equal(t, "oneStore.assets", canvas.DataSource)
		assert.Equal(t, []ActionBinding{{Event: "onSelect", Path: "oneStore.selectAsset"}}, canvas.DataActions)
		assert.Equal(t, []string{"card"}, canvas.PresetTargets)
		require.NotNil(t, canvas.Props)
		assert.Equal(t, "2", canvas.Props.Get("zoom").Scalar)

		_, ok = doc.Component("root")
		assert.False(t, ok)

		layout, ok := doc.Layout("dashboard")
		require.True(t, ok)
		assert.Equal(t, []string{"header", "canvas"}, layout.Children)
		assert.Equal(t, []string{"dashboard", "empty"}, doc.LayoutNames())
	})

	t.Run("finds presets in category order", func(t *testing.T) {
		doc, err := ParseThemeDocument("ui", []byte(sampleTheme), FormatJSON)
		require.NoError(t, err)

		ref, ok := doc.FindPreset("card")
		require.True(t, ok)
		assert.Equal(t, CategoryLooks, ref.Category)

		_, ok = doc.FindPreset("missing")
		assert.False(t, ok)

		assert.Equal(t, []string{"dashboard", "empty", "card"}, doc.PresetIDs())
	})

	t.Run("accepts an empty document", func(t *testing.T) {
		doc, err := ParseThemeDocument("bare", []byte(`{}`), FormatJSON)
		require.NoError(t, err)
		assert.Empty(t, doc.ComponentIDs())
		assert.Empty(t, doc.PresetIDs())
		_, ok := doc.Layout("dashboard")
		assert.False(t, ok)
	})

	t.Run("rejects blank input", func(t *testing.T) {
		_, err := ParseThemeDocument("bare", []byte("  \n"), "")
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})

	t.Run("accepts YAML", func(t *testing.T) {
		src := "structure:\n  nav: menu\npresets:\n  layouts:\n    dashboard:\n      children: [nav]\n"
		doc, err := ParseThemeDocument("ui", []byte(src), FormatYAML)
		require.NoError(t, err)
		layout, ok := doc.Layout("dashboard")
		require.True(t, ok)
		assert.Equal(t, []string{"nav"}, layout.Children)
	})
}

func TestThemeDocumentSchemaErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		path string
	}{
		{"root must be an object", `[1]`, "$"},
		{"structure must be an object", `{"structure": "x"}`, "structure"},
		{"component must be string or object", `{"structure": {"a": 3}}`, "structure.a"},
		{"type must be a string", `{"structure": {"a": {"type": 1}}}`, "structure.a.type"},
		{"type must be a css identifier", `{"structure": {"a": {"type": "two words"}}}`, "structure.a.type"},
		{"data-source must be a store path", `{"structure": {"a": {"data-source": "nostore"}}}`, "structure.a.data-source"},
		{"data-actions must be an object", `{"structure": {"a": {"data-actions": ["x"]}}}`, "structure.a.data-actions"},
		{"action path must be a store path", `{"structure": {"a": {"data-actions": {"onClick": "bad"}}}}`, "structure.a.data-actions[0].path"},
		{"props must be an object", `{"structure": {"a": {"props": 1}}}`, "structure.a.props"},
		{"grid-area cannot break out of a declaration", `{"structure": {"a": {"grid-area": "a; color: red"}}}`, "structure.a.grid-area"},
		{"duplicate ids", `{"structure": {"a": {"id": "x"}, "b": {"id": "x"}}}`, "structure.b.id"},
		{"children must be a list", `{"presets": {"layouts": {"d": {"children": "a"}}}}`, "presets.layouts.d.children"},
		{"preset category must be an object", `{"presets": {"looks": 1}}`, "presets.looks"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseThemeDocument("ui", []byte(tc.src), FormatJSON)
			require.Error(t, err)

			var schemaErrs SchemaErrors
			require.True(t, errors.As(err, &schemaErrs), "got %v", err)
			paths := make([]string, len(schemaErrs))
			for i, e := range schemaErrs {
				paths[i] = e.Path
			}
			assert.Contains(t, paths, tc.path)
		})
	}

	t.Run("parse failures are not schema errors", func(t *testing.T) {
		_, err := ParseThemeDocument("ui", []byte(`{`), FormatJSON)
		require.Error(t, err)
		var schemaErrs SchemaErrors
		assert.False(t, errors.As(err, &schemaErrs))
	})
}

func TestIsStorePath(t *testing.T) {
	assert.True(t, IsStorePath("oneStore.currentView"))
	assert.True(t, IsStorePath("oneStore.activePresets[asset-1]"))
	assert.True(t, IsStorePath("oneStore.assets.0.name"))
	assert.False(t, IsStorePath("oneStore"))
	assert.False(t, IsStorePath("oneStore..x"))
	assert.False(t, IsStorePath("oneStore.a[]"))
}

func TestValidateThemeName(t *testing.T) {
	assert.NoError(t, ValidateThemeName("ui"))
	assert.NoError(t, ValidateThemeName("dark_mode-2"))
	assert.ErrorIs(t, ValidateThemeName("../etc"), ErrInvalidThemeName)
	assert.ErrorIs(t, ValidateThemeName(""), ErrInvalidThemeName)
}

func TestVariableMap(t *testing.T) {
	m := NewVariableMap()
	m.Set("--a", "1")
	m.Set("--b", "2")
	m.Set("--a", "3")

	assert.Equal(t, []string{"--a", "--b"}, m.Names())
	v, ok := m.Get("--a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	out, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"--a":"3","--b":"2"}`, string(out))
}
