package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/observability"
	"github.com/themeflow/server/internal/repository"
	"github.com/themeflow/server/internal/services"
)

const maxThemeUploadSize = 4 << 20

// ThemeHandler handles theme API endpoints
type ThemeHandler struct {
	processor *services.ThemeProcessor
	repo      repository.ThemeDocumentRepository
	logger    *observability.Logger
}

// NewThemeHandler creates a new ThemeHandler
func NewThemeHandler(processor *services.ThemeProcessor, repo repository.ThemeDocumentRepository, logger *observability.Logger) *ThemeHandler {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &ThemeHandler{
		processor: processor,
		repo:      repo,
		logger:    logger.WithField("component", "theme_handler"),
	}
}

// ListThemes returns cached themes and documents stored in the database
// GET /api/themes
func (h *ThemeHandler) ListThemes(w http.ResponseWriter, r *http.Request) {
	infos := h.processor.Info()
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.Name] = true
	}

	stored, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("Failed to list stored themes")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve themes")
		return
	}
	for _, st := range stored {
		if seen[st.Name] {
			continue
		}
		infos = append(infos, models.ThemeInfo{Name: st.Name, Source: "db", UpdatedAt: st.UpdatedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	writeJSON(w, http.StatusOK, models.ThemeListResponse{Themes: infos})
}

// GetTheme returns a theme document, loading it if needed
// GET /api/themes/{name}
func (h *ThemeHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	doc, err := h.processor.Ensure(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeThemeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc.Root())
}

// GetThemeCSS returns the compiled stylesheet of a theme
// GET /api/themes/{name}/css
func (h *ThemeHandler) GetThemeCSS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc, err := h.processor.Ensure(r.Context(), name)
	if err != nil {
		writeThemeError(w, err)
		return
	}

	writeCSS(w, r, h.processor.Compile(r.Context(), doc, name))
}

// ApplyTheme compiles a theme into the stylesheet registry
// POST /api/themes/{name}/apply
func (h *ThemeHandler) ApplyTheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.processor.Ensure(r.Context(), name); err != nil {
		writeThemeError(w, err)
		return
	}
	if !h.processor.ApplyTheme(r.Context(), name) {
		writeError(w, http.StatusInternalServerError, "Failed to apply theme")
		return
	}

	writeJSON(w, http.StatusOK, models.ApplyThemeResponse{
		Theme:        name,
		Applied:      true,
		StylesheetID: models.ThemeStyleID(name),
	})
}

// --- Admin Endpoints ---

// PutTheme validates and stores a theme document
// PUT /api/admin/themes/{name}
func (h *ThemeHandler) PutTheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := models.ValidateThemeName(name); err != nil {
		writeThemeError(w, err)
		return
	}

	var req models.StoreThemeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxThemeUploadSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Format == "" {
		req.Format = models.SniffFormat([]byte(req.Document))
	}

	// Reject documents that would fail to load later
	if _, err := models.ParseThemeDocument(name, []byte(req.Document), req.Format); err != nil {
		var schemaErrs models.SchemaErrors
		if errors.As(err, &schemaErrs) || errors.Is(err, models.ErrEmptyDocument) {
			writeThemeError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored := &models.StoredTheme{Name: name, Format: req.Format, Document: req.Document}
	if err := h.repo.Upsert(r.Context(), stored); err != nil {
		if errors.Is(err, models.ErrSystemThemeEdit) {
			writeThemeError(w, err)
			return
		}
		h.logger.WithContext(r.Context()).WithError(err).WithField("theme", name).Error("Failed to store theme")
		writeError(w, http.StatusInternalServerError, "Failed to store theme")
		return
	}

	// A theme in use picks up the new document immediately
	if _, cached := h.processor.GetTheme(name); cached {
		h.processor.ReloadTheme(r.Context(), name)
	}

	writeJSON(w, http.StatusOK, stored)
}

// DeleteTheme removes a stored document and unloads the theme
// DELETE /api/admin/themes/{name}
func (h *ThemeHandler) DeleteTheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := models.ValidateThemeName(name); err != nil {
		writeThemeError(w, err)
		return
	}

	if err := h.repo.Delete(r.Context(), name); err != nil {
		if errors.Is(err, models.ErrThemeNotFound) || errors.Is(err, models.ErrSystemThemeEdit) {
			writeThemeError(w, err)
			return
		}
		h.logger.WithContext(r.Context()).WithError(err).WithField("theme", name).Error("Failed to delete theme")
		writeError(w, http.StatusInternalServerError, "Failed to delete theme")
		return
	}

	h.processor.RemoveTheme(name)

	w.WriteHeader(http.StatusNoContent)
}
