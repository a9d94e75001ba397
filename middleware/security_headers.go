package middleware

import "net/http"

// APISecurityHeaders are the defaults for a JSON API that is never framed
// and never renders HTML.
var APISecurityHeaders = map[string]string{
	"X-Content-Type-Options":       "nosniff",
	"X-Frame-Options":              "DENY",
	"Referrer-Policy":              "no-referrer",
	"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
	"Cross-Origin-Resource-Policy": "same-origin",
}

// SecurityHeaders sets headers before the handler runs. Headers the handler
// sets itself win. A nil map uses APISecurityHeaders.
func SecurityHeaders(headers map[string]string) Middleware {
	if headers == nil {
		headers = APISecurityHeaders
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				if v != "" {
					h.Set(k, v)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
