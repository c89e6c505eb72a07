package middleware

import (
	"net/http"
	"regexp"
)

// CORSWildcard allows any origin on the extension-facing API routes.
//
// The extension runs inside intra pages, so requests arrive from the
// school's origin — but the API has always answered with a wildcard (the
// endpoints expose nothing beyond what any valid intra token already
// grants), and tightening it would break installed clients.
func CORSWildcard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// intraOriginPattern matches the school intranet origins the update-check
// endpoint will answer, e.g. "https://profile.intra.42.fr".
var intraOriginPattern = regexp.MustCompile(`.*\.intra\..*`)

// CORSIntraOnly reflects the Origin header only when it matches the
// intranet domain pattern. Non-matching origins get no CORS headers at
// all — the browser then blocks the cross-origin read.
func CORSIntraOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && intraOriginPattern.MatchString(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
