package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onlygantt/ganttd/internal/domain/lock"
)

// Error codes surfaced to clients. Lock and revision conflicts are expected
// traffic, not failures; they carry enough state for the UI to offer an
// actionable choice.
const (
	codeInvalidRequest   = "INVALID_REQUEST"
	codeInvalidName      = "INVALID_NAME"
	codeInvalidJSON      = "INVALID_JSON"
	codeInvalidPassword  = "INVALID_PASSWORD"
	codeUnauthorized     = "UNAUTHORIZED"
	codeNotFound         = "NOT_FOUND"
	codeAlreadyExists    = "ALREADY_EXISTS"
	codeValidationError  = "VALIDATION_ERROR"
	codeLockRequired     = "LOCK_REQUIRED"
	codeLockNotOwned     = "LOCK_NOT_OWNED"
	codeRevisionMismatch = "REVISION_MISMATCH"
	codeFileTooLarge     = "FILE_TOO_LARGE"
	codeAdminLocalOnly   = "ADMIN_LOCAL_ONLY"
	codeInternalError    = "INTERNAL_ERROR"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// lockInfo is the wire shape of a department's lock status.
type lockInfo struct {
	Locked          bool           `json:"locked"`
	Department      string         `json:"department"`
	LockedBy        string         `json:"lockedBy,omitempty"`
	OwnerUserName   string         `json:"ownerUserName,omitempty"`
	OwnerType       lock.OwnerType `json:"ownerType,omitempty"`
	ClientHost      string         `json:"clientHost,omitempty"`
	LockedAt        *time.Time     `json:"lockedAt,omitempty"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty"`
	LastHeartbeatAt *time.Time     `json:"lastHeartbeatAt,omitempty"`
}

func lockInfoFrom(department string, l *lock.Lock) lockInfo {
	if l == nil {
		return lockInfo{Locked: false, Department: department}
	}
	return lockInfo{
		Locked:          true,
		Department:      department,
		LockedBy:        l.OwnerUserName,
		OwnerUserName:   l.OwnerUserName,
		OwnerType:       l.OwnerType,
		ClientHost:      l.ClientHost,
		LockedAt:        &l.LockedAt,
		ExpiresAt:       &l.ExpiresAt,
		LastHeartbeatAt: &l.LastHeartbeatAt,
	}
}
