package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/document"
)

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.docs.List()
	if err != nil {
		s.logger.Error("listing departments failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to list departments", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": summaries})
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	if err := s.docs.VerifyPassword(name, req.Password); err != nil {
		s.writeDocumentError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	if err := s.docs.ChangePassword(name, req.OldPassword, req.NewPassword); err != nil {
		s.writeDocumentError(w, name, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypePasswordChanged,
		Department: name,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	doc, err := s.docs.Get(name)
	if err != nil {
		s.writeDocumentError(w, name, err)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", name+".json"))
	// The password never leaves the server; exports hold data only.
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": doc.Projects,
		"meta":     doc.Meta,
	})
}

type importRequest struct {
	UserName  string             `json:"userName"`
	UserToken string             `json:"userToken,omitempty"`
	Projects  []document.Project `json:"projects"`
	Meta      document.Meta      `json:"meta"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}
	if !s.validateUserSession(w, r, req.UserName, req.UserToken) {
		return
	}
	if req.Projects == nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "projects is required", nil)
		return
	}

	incoming := &document.Document{
		Projects: req.Projects,
		Meta:     req.Meta,
	}
	meta, err := s.docs.Import(name, req.UserName, incoming)
	if err != nil {
		s.writeDocumentError(w, name, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeDocumentImported,
		Department: name,
		Actor:      req.UserName,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"meta": meta,
	})
}

func (s *Server) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	name, err := s.docs.Create(req.Name, "admin")
	if err != nil {
		s.writeDocumentError(w, req.Name, err)
		return
	}
	if req.Password != "" {
		if err := s.docs.ResetPassword(name, req.Password); err != nil {
			s.writeDocumentError(w, name, err)
			return
		}
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeDepartmentCreated,
		Department: name,
		Actor:      "admin",
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":   true,
		"name": name,
	})
}

func (s *Server) handleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.docs.Delete(name); err != nil {
		s.writeDocumentError(w, name, err)
		return
	}
	// Drop any lease on the deleted department so the name can be reused
	// immediately.
	if err := s.locks.AdminRelease(name); err != nil {
		s.logger.Warn("releasing lock for deleted department failed",
			"department", name, "error", err)
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeDepartmentDeleted,
		Department: name,
		Actor:      "admin",
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body", nil)
		return
	}

	if err := s.docs.ResetPassword(name, req.NewPassword); err != nil {
		s.writeDocumentError(w, name, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypePasswordChanged,
		Department: name,
		Actor:      "admin",
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
