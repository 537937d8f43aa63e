package services

import (
	"strings"

	"github.com/themeflow/server/internal/models"
)

// Keys of a structure entry that bind the component instead of styling it
var bindingKeys = map[string]bool{
	"type":                true,
	"data-component":      true,
	"id":                  true,
	"data-source":         true,
	"data-actions":        true,
	"data-preset-targets": true,
	"props":               true,
}

// CompileCSS turns a theme document into stylesheet text scoped under .scope.
// Output depends only on the document and scope; emission follows document order.
func CompileCSS(doc *models.ThemeDocument, scope string) string {
	var lines []string
	sel := "." + scope

	lines = append(lines, sel+" {")
	if doc.Variables != nil {
		lines = append(lines, "  /* Theme Variables */")
		lines = appendVariables(lines, doc.Variables, "")
	}
	if root := doc.Structure.Get(models.RootStructureKey); root.IsObject() {
		lines = append(lines, "  /* Root Structure */")
		lines = appendDeclarations(lines, root, "  ", nil)
	}
	lines = append(lines, "}")

	for _, key := range doc.Structure.Keys() {
		entry := doc.Structure.Get(key)
		if key == models.RootStructureKey || !entry.IsObject() {
			continue
		}
		lines = append(lines, "", sel+" ."+key+" {")
		lines = appendDeclarations(lines, entry, "  ", bindingKeys)
		lines = append(lines, "}")
	}

	if doc.Presets != nil {
		lines = append(lines, "", "/* Theme Presets */")
		for _, category := range doc.Presets.Keys() {
			lines = appendPresetCategory(lines, sel, category, doc.Presets.Get(category))
		}
	}

	return strings.Join(lines, "\n")
}

func appendPresetCategory(lines []string, sel, category string, presets *models.Node) []string {
	lines = append(lines, "/* "+category+" presets */")

	for _, id := range presets.Keys() {
		body := presets.Get(id)
		if !body.IsObject() {
			continue
		}

		switch category {
		case models.CategoryLayouts, models.CategoryLooks:
			lines = append(lines, sel+"."+id+" {")
		case models.CategoryComponents:
			for _, class := range body.Keys() {
				styles := body.Get(class)
				if !styles.IsObject() {
					continue
				}
				lines = append(lines, sel+" ."+class+" {")
				lines = appendDeclarations(lines, styles, "  ", nil)
				lines = append(lines, "}")
			}
			continue
		default:
			lines = append(lines, sel+" ."+id+" {")
		}

		lines = appendDeclarations(lines, body, "  ", nil)
		if states := body.Get(models.StatesKey); states.IsObject() {
			for _, state := range states.Keys() {
				stateStyles := states.Get(state)
				if !stateStyles.IsObject() {
					continue
				}
				lines = append(lines, "  &:"+state+" {")
				lines = appendDeclarations(lines, stateStyles, "    ", nil)
				lines = append(lines, "  }")
			}
		}
		lines = append(lines, "}")
	}
	return lines
}

// appendVariables flattens nested variable categories into custom properties.
// A leaf is a scalar or an object carrying a scalar "value".
func appendVariables(lines []string, vars *models.Node, prefix string) []string {
	for _, key := range vars.Keys() {
		v := vars.Get(key)
		switch {
		case v.IsStyleValue():
			lines = append(lines, "  --"+prefix+CamelToKebab(key)+": "+v.Scalar+";")
		case v.IsObject() && v.Get("value").IsStyleValue():
			lines = append(lines, "  --"+prefix+CamelToKebab(key)+": "+v.Get("value").Scalar+";")
		case v.IsObject():
			lines = appendVariables(lines, v, prefix+key+"-")
		}
	}
	return lines
}

// appendDeclarations emits scalar properties of styles; directives and skip keys are left out
func appendDeclarations(lines []string, styles *models.Node, indent string, skip map[string]bool) []string {
	for _, prop := range styles.Keys() {
		if strings.HasPrefix(prop, models.DirectivePrefix) || skip[prop] {
			continue
		}
		v := styles.Get(prop)
		if !v.IsStyleValue() {
			continue
		}
		lines = append(lines, indent+CamelToKebab(prop)+": "+v.Scalar+";")
	}
	return lines
}

// CamelToKebab converts word-caps to hyphenated lower case: borderRadius -> border-radius
func CamelToKebab(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('-')
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
