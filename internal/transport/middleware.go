package transport

import (
	"net/http"
	"strings"
)

// requireAdmin enforces the privileged bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Admin authentication required", nil)
			return
		}
		if !s.auth.ValidateAdmin(token) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid or expired admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// validateUserSession checks that the caller's session token was issued for
// the user name it claims. The lock protocol trusts this binding only.
func (s *Server) validateUserSession(w http.ResponseWriter, r *http.Request, userName, bodyToken string) bool {
	if strings.TrimSpace(userName) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "userName is required", nil)
		return false
	}

	token := r.Header.Get("X-User-Token")
	if token == "" {
		token = bodyToken
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User token required", nil)
		return false
	}
	if !s.auth.ValidateUser(token, userName) {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid or expired user session", nil)
		return false
	}
	return true
}
