package rest

import (
	"net/http"

	"tinedy-api/sys/http/middleware"

	"github.com/go-chi/chi/v5"
)

func (s *Server) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	result, err := s.Limiter.Status(r.Context(), principal.UID, string(principal.Role))
	if err != nil {
		s.writeServiceError(w, "rate limit status", err)
		return
	}

	middleware.SetRateLimitHeaders(w, result)
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{
		"success": true,
		"rateLimit": map[string]any{
			"allowed":   result.Allowed,
			"limit":     result.Limit,
			"remaining": result.Remaining,
			"reset":     result.Reset.UnixMilli(),
		},
	})
}

func (s *Server) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalId")
	if err := s.Limiter.Reset(r.Context(), principalID); err != nil {
		s.writeServiceError(w, "reset rate limit", err)
		return
	}

	s.Logger.Printf("Rate limit reset for %s by %s", principalID, middleware.GetPrincipal(r.Context()).UID)
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"success": true})
}
