package lock

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOwned indicates the caller does not currently hold the lease.
	ErrNotOwned = errors.New("lock not owned")
	// ErrInvalidInput indicates a missing department or user name.
	ErrInvalidInput = errors.New("invalid lock input")
)

// ConflictError reports that another identity holds a live lease. It carries
// the current lock snapshot so callers can show who holds it.
type ConflictError struct {
	Current Lock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("department %q locked by %s until %s",
		e.Current.Department, e.Current.OwnerUserName, e.Current.ExpiresAt.Format("15:04:05"))
}
