package middleware

import (
	"net/http"
)

// AdminAuth creates middleware requiring the admin key on every request.
// Without a configured key the admin routes are closed.
func AdminAuth(adminKey, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeJSONError(w, http.StatusForbidden, "Admin access is disabled.")
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeJSONError(w, http.StatusUnauthorized, "Admin key is required.")
				return
			}

			// CRITICAL: constant-time compare of the admin key
			if !constantTimeEquals(adminKey, providedKey) {
				writeJSONError(w, http.StatusForbidden, "Admin access required.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
