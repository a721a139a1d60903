package request

import (
	"net/http"
)

// BodyLimit caps request body size before the privacy handlers decode
// JSON. http.MaxBytesReader answers 413 on overflow and closes the
// connection; mount it ahead of anything that reads the body.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
