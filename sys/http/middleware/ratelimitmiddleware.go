package middleware

import (
	"log"
	"net/http"
	"strconv"

	"tinedy-api/res/ratelimit"
)

const rateLimitExceededCode = "RATE_LIMIT_EXCEEDED"

// defaultRetryAfterSeconds is sent when the limiter reports no wait time
const defaultRetryAfterSeconds = 60

// RateLimitMiddleware counts each request against the principal's window. It must run
// after RequireRoles. Limiter failures let the request through.
func RateLimitMiddleware(logger *log.Logger, limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Check(r.Context(), principal.UID, string(principal.Role))
			if err != nil {
				logger.Printf("Warning: rate limit check failed for %s: %v", principal.UID, err)
				next.ServeHTTP(w, r)
				return
			}

			SetRateLimitHeaders(w, result)
			if !result.Allowed {
				retryAfter := result.RetryAfter
				if retryAfter <= 0 {
					retryAfter = defaultRetryAfterSeconds
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				logger.Printf("Rate limit exceeded for %s (%s), retry after %ds", principal.UID, principal.Role, retryAfter)
				WriteError(w, logger, http.StatusTooManyRequests, rateLimitExceededCode,
					"Too many requests, please try again shortly", map[string]any{"retryAfter": retryAfter})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders writes the X-RateLimit-* headers. Reset is in Unix milliseconds.
func SetRateLimitHeaders(w http.ResponseWriter, result ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset.UnixMilli(), 10))
}
