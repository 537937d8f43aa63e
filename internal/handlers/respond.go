package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/themeflow/server/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// writeThemeError maps theme loading and storage failures to HTTP statuses
func writeThemeError(w http.ResponseWriter, err error) {
	var schemaErrs models.SchemaErrors
	switch {
	case errors.As(err, &schemaErrs):
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Invalid theme document", Issues: schemaErrs})
	case errors.Is(err, models.ErrInvalidThemeName):
		writeError(w, http.StatusBadRequest, "Invalid theme name")
	case errors.Is(err, models.ErrThemeNotFound):
		writeError(w, http.StatusNotFound, "Theme not found")
	case errors.Is(err, models.ErrSystemThemeEdit):
		writeError(w, http.StatusForbidden, "System themes cannot be modified")
	case errors.Is(err, models.ErrEmptyDocument):
		writeError(w, http.StatusBadRequest, "Theme document is empty")
	default:
		writeError(w, http.StatusBadGateway, "Failed to load theme")
	}
}
