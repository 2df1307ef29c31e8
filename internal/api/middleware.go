package api

import (
	"net/http"
	"strings"

	"github.com/corvida/mangrove/internal/auth"
)

// AdminAuthMiddleware guards the admin surface with a bearer token checked
// against the bcrypt hash in config. With no hash configured the admin API
// is disabled outright rather than left open.
func (s *Server) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := s.app.Config().Admin.TokenHash
		if hash == "" {
			RespondWithError(w, http.StatusForbidden, "Admin API is disabled: no admin token configured")
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !auth.CheckToken(token, hash) {
			RespondWithError(w, http.StatusUnauthorized, "Invalid or missing admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
