package audit

import "time"

// EventType classifies an audit event.
type EventType string

const (
	TypeLockAcquired      EventType = "lock_acquired"
	TypeLockReleased      EventType = "lock_released"
	TypeLockAdminReleased EventType = "lock_admin_released"
	TypeDocumentSaved     EventType = "document_saved"
	TypeDocumentImported  EventType = "document_imported"
	TypeDocumentUploaded  EventType = "document_uploaded"
	TypeDepartmentCreated EventType = "department_created"
	TypeDepartmentDeleted EventType = "department_deleted"
	TypePasswordChanged   EventType = "password_changed"
	TypeAdminLogin        EventType = "admin_login"
)

// Entry is one audit event. Details is a JSON string with event-specific
// payload.
type Entry struct {
	ID         int64     `json:"id"`
	EventType  EventType `json:"type"`
	Department string    `json:"department,omitempty"`
	Actor      string    `json:"actor"`
	ClientHost string    `json:"clientHost,omitempty"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
