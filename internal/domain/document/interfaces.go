package document

// Store is durable, atomic storage of one JSON document per department.
// It enforces no serialization discipline of its own; callers own that.
type Store interface {
	// Read returns ErrNotFound when the document does not exist and
	// ErrCorruptData when it exists but cannot be parsed.
	Read(department string) (*Document, error)
	// Write persists atomically: the rename is the only step that makes
	// the write visible.
	Write(department string, doc *Document) error
	Exists(department string) (bool, error)
	List() ([]string, error)
	// Delete removes the document and its backup.
	Delete(department string) error
}

// LockChecker reports whether a user holds the live edit lease for a
// department. Implemented by the lock coordinator.
type LockChecker interface {
	IsOwner(department, userName string) bool
}
