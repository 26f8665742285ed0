package document

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the department document does not exist.
	ErrNotFound = errors.New("department not found")
	// ErrCorruptData indicates a persisted document exists but is not
	// valid JSON. Distinct from ErrNotFound: the .bak file must stay
	// recoverable and the data must never be overwritten blindly.
	ErrCorruptData = errors.New("department data is corrupt")
	// ErrAlreadyExists indicates a create collided with an existing department.
	ErrAlreadyExists = errors.New("department already exists")
	// ErrInvalidName indicates the department name failed validation.
	ErrInvalidName = errors.New("invalid department name")
	// ErrLockRequired indicates the caller does not hold the edit lease.
	ErrLockRequired = errors.New("edit lock required")
	// ErrInvalidPassword indicates a failed department password check.
	ErrInvalidPassword = errors.New("invalid password")
)

// RevisionMismatchError reports that the document changed since the caller
// last read it. It carries both revisions so the client can reload and
// re-apply instead of silently losing data.
type RevisionMismatchError struct {
	Expected int64
	Current  int64
	Meta     Meta
}

func (e *RevisionMismatchError) Error() string {
	return fmt.Sprintf("revision mismatch: expected %d, current %d", e.Expected, e.Current)
}

// ValidationError aggregates document schema violations.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document validation failed: %d problem(s)", len(e.Problems))
}
