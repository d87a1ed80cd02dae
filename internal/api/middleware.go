// Package api implements the notelive HTTP surface using chi.
package api

import "net/http"

// NoStore marks responses as uncacheable. Version and note payloads change
// whenever the store publishes, so intermediaries must not replay them.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
