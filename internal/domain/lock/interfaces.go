package lock

import "time"

// Store is the durable department → Lock mapping. Implementations persist
// the full map synchronously on every mutation, so the in-memory state and
// the on-disk snapshot are never observably out of sync.
type Store interface {
	// Get returns the lock for a department, expired or not.
	Get(department string) (*Lock, bool)
	Set(department string, l Lock) error
	// Remove deletes the lock and reports whether one existed.
	Remove(department string) (bool, error)
	// SweepExpired drops every lease whose expiry has passed and returns
	// how many were removed.
	SweepExpired(now time.Time) (int, error)
	// Load reads the persisted snapshot, dropping already-expired leases
	// so a restart never resurrects them.
	Load(now time.Time) (loaded, expired int, err error)
}
