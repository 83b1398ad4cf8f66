package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods   = "GET, POST, PATCH, DELETE, OPTIONS"
	corsAllowHeaders   = "Content-Type, Authorization"
	corsExposeHeaders  = "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After"
	corsFallbackOrigin = "http://localhost:3000"
)

type CORSOptions struct {
	Environment   string
	AllowedOrigin string // Admin frontend origin, enforced in production
}

// originAllowed accepts the configured origin and its https subdomains in production.
// Every origin is accepted elsewhere.
func (o CORSOptions) originAllowed(origin string) bool {
	if o.Environment != "production" {
		return true
	}
	if o.AllowedOrigin == "" {
		return false
	}
	if origin == o.AllowedOrigin {
		return true
	}
	host := strings.TrimPrefix(o.AllowedOrigin, "https://")
	return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, "."+host)
}

func CORSMiddleware(opts CORSOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if origin == "" && opts.Environment != "production" {
				origin = corsFallbackOrigin
			}

			// Disallowed origins get no CORS headers, the browser blocks the response
			if origin != "" && opts.originAllowed(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
