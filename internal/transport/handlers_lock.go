package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/lock"
)

type lockRequest struct {
	UserName   string         `json:"userName"`
	UserToken  string         `json:"userToken,omitempty"`
	ClientHost string         `json:"clientHost,omitempty"`
	OwnerType  lock.OwnerType `json:"ownerType,omitempty"`
}

func (s *Server) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}
	if !s.validateUserSession(w, r, req.UserName, req.UserToken) {
		return
	}

	held, err := s.locks.Acquire(department, req.UserName, req.OwnerType, req.ClientHost)
	if err != nil {
		var conflict *lock.ConflictError
		switch {
		case errors.As(err, &conflict):
			writeJSON(w, http.StatusLocked, lockInfoFrom(department, &conflict.Current))
		case errors.Is(err, lock.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error(), nil)
		default:
			s.logger.Error("lock acquire failed", "department", department, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to acquire lock", nil)
		}
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeLockAcquired,
		Department: department,
		Actor:      req.UserName,
		ClientHost: req.ClientHost,
	})
	writeJSON(w, http.StatusOK, lockInfoFrom(department, held))
}

func (s *Server) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	// No session check: the browser fires this from page unload as a
	// best-effort beacon. Release is advisory; lease expiry is the real
	// safety net.
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	released, err := s.locks.Release(department, req.UserName)
	if err != nil {
		s.logger.Error("lock release failed", "department", department, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to release lock", nil)
		return
	}
	if released {
		s.audit.Record(r.Context(), &audit.Entry{
			EventType:  audit.TypeLockReleased,
			Department: department,
			Actor:      req.UserName,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")
	writeJSON(w, http.StatusOK, lockInfoFrom(department, s.locks.Status(department)))
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}
	if !s.validateUserSession(w, r, req.UserName, req.UserToken) {
		return
	}

	if err := s.locks.Heartbeat(department, req.UserName); err != nil {
		switch {
		case errors.Is(err, lock.ErrNotOwned):
			writeError(w, http.StatusConflict, codeLockNotOwned, "Lock not owned by user", nil)
		case errors.Is(err, lock.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error(), nil)
		default:
			s.logger.Error("heartbeat failed", "department", department, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to renew lock", nil)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminRelease(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	if err := s.locks.AdminRelease(department); err != nil {
		s.logger.Error("admin release failed", "department", department, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to release lock", nil)
		return
	}
	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeLockAdminReleased,
		Department: department,
		Actor:      "admin",
	})
	w.WriteHeader(http.StatusNoContent)
}
