package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/auth"
)

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	token, user, err := s.auth.Login(req.UserID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "userId is required", nil)
		case errors.Is(err, auth.ErrAdminLocalOnly):
			writeError(w, http.StatusForbidden, codeAdminLocalOnly, "Admin access is local only", nil)
		default:
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"token": token,
		"user":  user,
	})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	adminToken, userToken, err := s.auth.AdminLogin(req.UserID, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid admin credentials", nil)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType: audit.TypeAdminLogin,
		Actor:     req.UserID,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"token":     adminToken,
		"userToken": userToken,
	})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.AdminLogout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}
