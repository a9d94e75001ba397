package middleware

import (
	"fmt"
	"net/http"
)

// DefaultBodyLimit caps request bodies when BodyLimit gets a non-positive size.
const DefaultBodyLimit = 4 << 20

// BodyLimit rejects requests whose declared Content-Length exceeds maxSize
// with 413 and caps the readable body for the rest.
func BodyLimit(maxSize int64) Middleware {
	if maxSize <= 0 {
		maxSize = DefaultBodyLimit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				msg := fmt.Sprintf("Request body too large. Maximum allowed: %d bytes", maxSize)
				http.Error(w, msg, http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
