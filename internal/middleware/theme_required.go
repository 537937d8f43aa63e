package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/themeflow/server/internal/models"
	"github.com/themeflow/server/internal/services"
)

type contextKey string

// ThemeContextKey holds the *models.ThemeDocument of the request
const ThemeContextKey contextKey = "theme"

// GetThemeFromContext retrieves the theme resolved by ThemeRequired
func GetThemeFromContext(ctx context.Context) *models.ThemeDocument {
	if doc, ok := ctx.Value(ThemeContextKey).(*models.ThemeDocument); ok {
		return doc
	}
	return nil
}

// ThemeRequired creates middleware that loads the theme named by the "theme"
// query parameter (or defaultTheme) before the request is served.
func ThemeRequired(processor *services.ThemeProcessor, defaultTheme string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := r.URL.Query().Get("theme")
			if name == "" {
				name = defaultTheme
			}

			doc, err := processor.Ensure(r.Context(), name)
			if err != nil {
				status := http.StatusServiceUnavailable
				switch {
				case errors.Is(err, models.ErrInvalidThemeName):
					status = http.StatusBadRequest
				case errors.Is(err, models.ErrThemeNotFound):
					status = http.StatusNotFound
				}

				// For API requests, return JSON
				if strings.HasPrefix(r.URL.Path, "/api") {
					writeJSONError(w, status, err.Error())
					return
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx := context.WithValue(r.Context(), ThemeContextKey, doc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
