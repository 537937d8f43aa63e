package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentETag returns a strong entity tag for compiled CSS
func ContentETag(css string) string {
	h := sha256.Sum256([]byte(css))
	return `"` + hex.EncodeToString(h[:16]) + `"`
}

// ETagMatches reports whether an If-None-Match header value names etag.
// Weak validators and the "*" wildcard match as well.
func ETagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
