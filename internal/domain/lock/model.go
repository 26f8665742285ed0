package lock

import "time"

// OwnerType classifies who holds a lease. Informational only; it does not
// change lock semantics.
type OwnerType string

const (
	OwnerUser  OwnerType = "user"
	OwnerAdmin OwnerType = "admin"
)

// Lock is a time-bounded exclusive claim on a department's editable
// document. At most one Lock exists per department at any time; it is held
// iff now is before ExpiresAt.
type Lock struct {
	Department      string    `json:"department"`
	OwnerUserName   string    `json:"ownerUserName"`
	OwnerType       OwnerType `json:"ownerType"`
	ClientHost      string    `json:"clientHost,omitempty"`
	LockedAt        time.Time `json:"lockedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	LastHeartbeatAt time.Time `json:"lastHeartbeatAt"`
}

// Expired reports whether the lease boundary has passed at now.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
