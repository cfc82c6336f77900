package controlplane

import (
	"net/http"

	"github.com/flagforge/flagforge/internal/auth"
)

// requireAdminKey is a minimal constant-time bearer-token check. The
// control plane is a trusted surface (no per-key roles, no audience
// scoping) so this exists only to keep an accidentally-exposed control
// plane from being wide open; an empty AdminKey disables it entirely for
// local development.
func (s *Server) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if !auth.VerifyAPIKeyConstantTime(token, s.AdminKey) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid admin key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
