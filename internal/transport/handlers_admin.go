package transport

import (
	"net/http"
	"strconv"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/document"
)

// adminDepartment is the operator view of one department: public summary
// plus the metadata and lock state the regular listing withholds.
type adminDepartment struct {
	Name      string        `json:"name"`
	Protected bool          `json:"protected"`
	Meta      document.Meta `json:"meta"`
	Lock      lockInfo      `json:"lock"`
}

func (s *Server) handleAdminDepartments(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.docs.List()
	if err != nil {
		s.logger.Error("listing departments failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to list departments", nil)
		return
	}

	out := make([]adminDepartment, 0, len(summaries))
	for _, summary := range summaries {
		doc, err := s.docs.Get(summary.Name)
		if err != nil {
			s.logger.Warn("skipping unreadable department",
				"department", summary.Name, "error", err)
			continue
		}
		out = append(out, adminDepartment{
			Name:      summary.Name,
			Protected: summary.Protected,
			Meta:      doc.Meta,
			Lock:      lockInfoFrom(summary.Name, s.locks.Status(summary.Name)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": out})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	opts := audit.ListOptions{
		Department: r.URL.Query().Get("department"),
		Limit:      100,
	}
	if v := r.URL.Query().Get("type"); v != "" {
		eventType := audit.EventType(v)
		opts.EventType = &eventType
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "limit must be 1-500", nil)
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "offset must be non-negative", nil)
			return
		}
		opts.Offset = n
	}

	entries, err := s.audit.Recent(r.Context(), opts)
	if err != nil {
		s.logger.Error("listing audit log failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Failed to list audit log", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
