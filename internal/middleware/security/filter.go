// Package security provides security-related HTTP middleware.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// exemptPaths are probed by orchestrators and never filtered.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// scannerPrefixes are the crawler probes that dominate traffic to a public
// form endpoint. Matching is done on the lowercased path.
var scannerPrefixes = []string{
	"/wp-",
	"/xmlrpc.php",
	"/.git/",
	"/.env",
	"/.ht",
	"/phpmyadmin",
	"/cgi-bin/",
}

// traversalMarkers must not appear in a path once it is fully decoded.
var traversalMarkers = []string{"../", `..\`, "\x00"}

// FilterMiddleware returns middleware that answers scanner probes and path
// traversal attempts with a bare 400 before they reach routing.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !exemptPaths[r.URL.Path] && suspicious(r.URL) {
				writeBlockedResponse(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// suspicious checks the decoded path and, to catch double encoding, the
// path decoded once more.
func suspicious(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	for _, prefix := range scannerPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	candidates := []string{path}
	if again, err := url.PathUnescape(path); err == nil && again != path {
		candidates = append(candidates, again)
	}
	for _, c := range candidates {
		for _, marker := range traversalMarkers {
			if strings.Contains(c, marker) {
				return true
			}
		}
	}
	return false
}

// writeBlockedResponse answers in the verify endpoint's error shape without
// saying which rule matched.
func writeBlockedResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "Invalid request",
	})
}
