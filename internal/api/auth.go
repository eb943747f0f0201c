package api

import (
	"net/http"

	"github.com/crieger/scopegw/internal/auth"
)

// authMiddleware authenticates the bearer token and attaches the resulting
// principal to the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		principal, ok := auth.Authenticate(token, s.config.APIKey, s.config.Tokens)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// requireRead rejects requests whose principal cannot read the resource.
func (s *Server) requireRead(res auth.Resource) func(http.Handler) http.Handler {
	return s.requireAccess(func(p auth.Principal) bool { return p.CanRead(res) })
}

// requireWrite rejects requests whose principal cannot mutate the resource.
func (s *Server) requireWrite(res auth.Resource) func(http.Handler) http.Handler {
	return s.requireAccess(func(p auth.Principal) bool { return p.CanWrite(res) })
}

func (s *Server) requireAccess(allowed func(auth.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || !allowed(principal) {
				s.writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
