package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/document"
)

// writeDocumentError maps domain errors from the document service onto wire
// responses. Lock and revision conflicts carry state the client resolves
// with; everything else is a plain envelope.
func (s *Server) writeDocumentError(w http.ResponseWriter, department string, err error) {
	var mismatch *document.RevisionMismatchError
	var invalid *document.ValidationError

	switch {
	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": errorDetail{
				Code:    codeRevisionMismatch,
				Message: "Document was modified by someone else",
				Details: map[string]int64{
					"expectedRevision": mismatch.Expected,
					"currentRevision":  mismatch.Current,
				},
			},
			"currentRevision": mismatch.Current,
			"meta":            mismatch.Meta,
		})
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, codeValidationError,
			"Document failed validation", invalid.Problems)
	case errors.Is(err, document.ErrLockRequired):
		// Tell the caller who holds the lease when someone does; an
		// unlocked department means they simply never acquired it.
		if current := s.locks.Status(department); current != nil {
			writeJSON(w, http.StatusLocked, lockInfoFrom(department, current))
			return
		}
		writeError(w, http.StatusLocked, codeLockRequired,
			"Edit lock required before saving", nil)
	case errors.Is(err, document.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Department not found", nil)
	case errors.Is(err, document.ErrInvalidName):
		writeError(w, http.StatusBadRequest, codeInvalidName, "Invalid department name", nil)
	case errors.Is(err, document.ErrAlreadyExists):
		writeError(w, http.StatusConflict, codeAlreadyExists, "Department already exists", nil)
	case errors.Is(err, document.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, codeInvalidPassword, "Invalid password", nil)
	case errors.Is(err, document.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Uploaded file is not valid JSON", nil)
	default:
		s.logger.Error("document operation failed", "department", department, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Internal error", nil)
	}
}

func (s *Server) handleGetProjects(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	doc, err := s.docs.Get(department)
	if err != nil {
		s.writeDocumentError(w, department, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": doc.Projects,
		"meta":     doc.Meta,
	})
}

type saveRequest struct {
	UserName         string             `json:"userName"`
	UserToken        string             `json:"userToken,omitempty"`
	Projects         []document.Project `json:"projects"`
	ExpectedRevision *int64             `json:"expectedRevision"`
}

func (s *Server) handleSaveProjects(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	var req saveRequest
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
	if req.ExpectedRevision == nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "expectedRevision is required", nil)
		return
	}

	meta, err := s.docs.Save(department, req.UserName, req.Projects, *req.ExpectedRevision)
	if err != nil {
		s.writeDocumentError(w, department, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeDocumentSaved,
		Department: department,
		Actor:      req.UserName,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"meta": meta,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge,
				"Uploaded file exceeds the size limit", nil)
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid multipart form", nil)
		return
	}

	userName := r.FormValue("userName")
	if !s.validateUserSession(w, r, userName, r.FormValue("userToken")) {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "file field is required", nil)
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge,
				"Uploaded file exceeds the size limit", nil)
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Failed to read uploaded file", nil)
		return
	}

	meta, err := s.docs.Upload(department, userName, payload)
	if err != nil {
		s.writeDocumentError(w, department, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		EventType:  audit.TypeDocumentUploaded,
		Department: department,
		Actor:      userName,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"meta": meta,
	})
}
