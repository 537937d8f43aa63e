package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/services"
)

// StylesheetHandler serves the fragments of the stylesheet registry
type StylesheetHandler struct {
	registry *services.StylesheetRegistry
}

// NewStylesheetHandler creates a new StylesheetHandler
func NewStylesheetHandler(registry *services.StylesheetRegistry) *StylesheetHandler {
	return &StylesheetHandler{registry: registry}
}

// ListStylesheets returns every fragment without its text
// GET /api/stylesheets
func (h *StylesheetHandler) ListStylesheets(w http.ResponseWriter, r *http.Request) {
	sheets := h.registry.List()
	out := make([]models.StylesheetSummary, len(sheets))
	for i, s := range sheets {
		out[i] = models.StylesheetSummary{ID: s.ID, Size: len(s.CSS), UpdatedAt: s.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetStylesheet returns one fragment
// GET /api/stylesheets/{id}
func (h *StylesheetHandler) GetStylesheet(w http.ResponseWriter, r *http.Request) {
	sheet, ok := h.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Stylesheet not found")
		return
	}

	w.Header().Set("Last-Modified", sheet.UpdatedAt.Format(http.TimeFormat))
	writeCSS(w, r, sheet.CSS)
}

// CombinedCSS returns every fragment in injection order
// GET /styles.css
func (h *StylesheetHandler) CombinedCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeCSS(w, r, h.registry.CombinedCSS())
}

// writeCSS answers conditional requests with 304 when the content is unchanged
func writeCSS(w http.ResponseWriter, r *http.Request, css string) {
	etag := services.ContentETag(css)
	w.Header().Set("ETag", etag)
	if services.ETagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write([]byte(css))
}
