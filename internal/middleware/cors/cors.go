// Package cors provides permissive cross-origin headers for browser callers.
package cors

import "net/http"

// Config holds the header values written on every response.
type Config struct {
	AllowOrigin  string
	AllowHeaders string
	AllowMethods string
}

// Permissive lets any origin POST JSON to the wrapped routes.
var Permissive = Config{
	AllowOrigin:  "*",
	AllowHeaders: "Content-Type",
	AllowMethods: "POST, OPTIONS",
}

// Middleware sets the CORS headers before the handler runs, so they are
// present on every status. Pre-flight requests get an empty 204.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetHeaders(w, cfg)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes the CORS headers onto w.
func SetHeaders(w http.ResponseWriter, cfg Config) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
	h.Set("Access-Control-Allow-Headers", cfg.AllowHeaders)
	h.Set("Access-Control-Allow-Methods", cfg.AllowMethods)
}
