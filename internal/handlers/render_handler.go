package handlers

import (
	"bytes"
	"net/http"

	"github.com/themeflow/server/internal/middleware"
	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/services"
)

// RenderHandler resolves the active layout of a theme. Routes are wrapped in
// middleware.ThemeRequired, which places the theme document in the request context.
type RenderHandler struct {
	resolver       *services.LayoutResolver
	html           *services.HTMLRenderer
	stylesheetHref string
	logger         *observability.Logger
}

// NewRenderHandler creates a new RenderHandler
func NewRenderHandler(resolver *services.LayoutResolver, html *services.HTMLRenderer, stylesheetHref string, logger *observability.Logger) *RenderHandler {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &RenderHandler{
		resolver:       resolver,
		html:           html,
		stylesheetHref: stylesheetHref,
		logger:         logger.WithField("component", "render_handler"),
	}
}

func (h *RenderHandler) resolve(r *http.Request) (*models.RenderResult, bool) {
	doc := middleware.GetThemeFromContext(r.Context())
	if doc == nil {
		return nil, false
	}
	if view := r.URL.Query().Get("view"); view != "" {
		return h.resolver.ResolveView(r.Context(), doc, view), true
	}
	return h.resolver.Resolve(r.Context(), doc), true
}

// RenderJSON returns the render result of the current or requested view
// GET /api/render?theme=ui&view=dashboard
func (h *RenderHandler) RenderJSON(w http.ResponseWriter, r *http.Request) {
	result, ok := h.resolve(r)
	if !ok {
		writeError(w, http.StatusInternalServerError, "No theme resolved")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RenderHTML returns a complete page for the current or requested view
// GET /render?theme=ui&view=dashboard
func (h *RenderHandler) RenderHTML(w http.ResponseWriter, r *http.Request) {
	result, ok := h.resolve(r)
	if !ok {
		http.Error(w, "No theme resolved", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := h.html.RenderPage(&buf, result, h.stylesheetHref); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
