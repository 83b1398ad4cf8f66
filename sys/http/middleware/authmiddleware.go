package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"tinedy-api/res/auth"
)

// SESSION PRINCIPAL GETTER

type contextKey string

var contextKeyPrincipal = contextKey("principal")

// sessionCookieName is the cookie the admin app stores its session token in
const sessionCookieName = "session"

func GetPrincipal(ctx context.Context) *auth.Principal {
	if val := ctx.Value(contextKeyPrincipal); val != nil {
		if principal, ok := val.(*auth.Principal); ok {
			return principal
		}
	}

	return nil
}

func WithPrincipal(ctx context.Context, principal *auth.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, principal)
}

// AUTH MIDDLEWARE

const (
	authUnauthorizedCode = "UNAUTHORIZED"
	authForbiddenCode    = "FORBIDDEN"
)

// AuthMiddleware attaches the principal of a valid token to the request context. The
// token is read from the Authorization header, or from the session cookie when the
// header is absent. Requests without a token pass through unauthenticated.
func AuthMiddleware(logger *log.Logger, authImpl auth.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if headerVal := r.Header.Get("Authorization"); len(headerVal) > 0 {
				headerValParts := strings.Split(headerVal, " ")
				if len(headerValParts) != 2 || !strings.EqualFold(headerValParts[0], "Bearer") {
					WriteError(w, logger, http.StatusUnauthorized, authUnauthorizedCode, "Malformed Authorization header", nil)
					return
				}
				token = headerValParts[1]
			} else if cookie, err := r.Cookie(sessionCookieName); err == nil {
				token = cookie.Value
			}

			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := authImpl.Authenticate(token)
			if err != nil {
				logger.Printf("Session verification failed: %v", err)
				WriteError(w, logger, http.StatusUnauthorized, authUnauthorizedCode, "Invalid or expired session", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRoles rejects requests without a principal, and principals whose role is not
// listed. No roles means any authenticated principal.
func RequireRoles(logger *log.Logger, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				WriteError(w, logger, http.StatusUnauthorized, authUnauthorizedCode, "Authentication required", nil)
				return
			}
			if len(roles) > 0 && !principal.HasRole(roles...) {
				logger.Printf("Error: access forbidden for %s with role %s on %s %s", principal.UID, principal.Role, r.Method, r.URL.Path)
				WriteError(w, logger, http.StatusForbidden, authForbiddenCode, "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
