package middleware

import "net/http"

// DefaultMaxBodyBytes is the default max request body size (512KB). Ingest
// payloads are small JSON documents; anything larger is a client bug.
const DefaultMaxBodyBytes = 512 * 1024

// MaxBodySize returns middleware that caps request body size for methods
// that may carry a body. GET/HEAD/DELETE are not limited.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
