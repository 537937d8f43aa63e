package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeflow/server/internal/models"
)

func mustParseTheme(t *testing.T, name, doc string) *models.ThemeDocument {
	t.Helper()
	parsed, err := models.ParseThemeDocument(name, []byte(doc), models.FormatJSON)
	require.NoError(t, err)
	return parsed
}

const compilerTheme = `{
  "variables": {
    "colors": {"primary": "#fff", "textMuted": {"value": "#999", "category": "text"}},
    "radius": "4px"
  },
  "structure": {
    "root": {"display": "grid"},
    "header": {"type": "header", "id": "h1", "backgroundColor": "red", "_hidden": "x"},
    "footer": "footer"
  },
  "presets": {
    "looks": {
      "card": {"padding": "8px", "_states": {"hover": {"color": "blue"}}}
    },
    "components": {
      "compact": {"header": {"padding": "2px"}}
    }
  }
}`

func TestCompileCSS(t *testing.T) {
	t.Run("emits sections in document order", func(t *testing.T) {
		doc := mustParseTheme(t, "ui", compilerTheme)

		expected := `.ui {
  /* Theme Variables */
  --colors-primary: #fff;
  --colors-text-muted: #999;
  --radius: 4px;
  /* Root Structure */
  display: grid;
}

.ui .header {
  background-color: red;
}

/* Theme Presets */
/* looks presets */
.ui.card {
  padding: 8px;
  &:hover {
    color: blue;
  }
}
/* components presets */
.ui .header {
  padding: 2px;
}`
		assert.Equal(t, expected, CompileCSS(doc, "ui"))
	})

	t.Run("is deterministic", func(t *testing.T) {
		doc := mustParseTheme(t, "ui", compilerTheme)
		assert.Equal(t, CompileCSS(doc, "ui"), CompileCSS(doc, "ui"))
	})

	t.Run("uses the scope for every selector", func(t *testing.T) {
		doc := mustParseTheme(t, "ui", compilerTheme)
		css := CompileCSS(doc, "dark")

		assert.Contains(t, css, ".dark {")
		assert.Contains(t, css, ".dark .header {")
		assert.Contains(t, css, ".dark.card {")
		assert.NotContains(t, css, ".ui")
	})

	t.Run("omits empty sections", func(t *testing.T) {
		doc := mustParseTheme(t, "bare", `{"structure": {"root": {"color": "black"}}}`)

		assert.Equal(t, ".bare {\n  /* Root Structure */\n  color: black;\n}", CompileCSS(doc, "bare"))
	})

	t.Run("layouts are compound selectors", func(t *testing.T) {
		doc := mustParseTheme(t, "ui", `{"presets": {"layouts": {"dashboard": {"children": ["a"], "gridTemplateColumns": "1fr 2fr"}}}}`)
		css := CompileCSS(doc, "ui")

		assert.Contains(t, css, "/* layouts presets */\n.ui.dashboard {\n  grid-template-columns: 1fr 2fr;\n}")
		assert.NotContains(t, css, "children")
	})

	t.Run("numbers are emitted verbatim", func(t *testing.T) {
		doc := mustParseTheme(t, "ui", `{"structure": {"root": {"zIndex": 10, "opacity": 0.5}}}`)
		css := CompileCSS(doc, "ui")

		assert.Contains(t, css, "  z-index: 10;\n")
		assert.Contains(t, css, "  opacity: 0.5;\n")
	})
}

func TestCamelToKebab(t *testing.T) {
	cases := map[string]string{
		"borderRadius":    "border-radius",
		"color":           "color",
		"backgroundColor": "background-color",
		"--shadowBlur":    "--shadow-blur",
		"already-kebab":   "already-kebab",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, CamelToKebab(in))
		})
	}
}
