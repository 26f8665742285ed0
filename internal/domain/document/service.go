package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onlygantt/ganttd/internal/metrics"
)

// ErrInvalidUpload indicates an uploaded file that is not valid JSON.
var ErrInvalidUpload = errors.New("uploaded file is not valid JSON")

// Service owns every write path to department documents. Writes are gated on
// lock ownership and serialized per department, so the revision
// read-check-increment never interleaves with another write. Atomic rename
// alone is not enough: the check itself is not atomic with the rename.
type Service struct {
	store  Store
	locks  LockChecker
	logger *slog.Logger

	mu      sync.Mutex
	deptMus map[string]*sync.Mutex
}

// NewService creates a new document service.
func NewService(store Store, locks LockChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		locks:   locks,
		logger:  logger,
		deptMus: make(map[string]*sync.Mutex),
	}
}

// Get returns the current document for a department.
func (s *Service) Get(department string) (*Document, error) {
	name, err := NormalizeName(department)
	if err != nil {
		return nil, err
	}
	return s.store.Read(name)
}

// List returns public summaries of every readable department. Corrupt
// documents are logged and skipped rather than failing the listing.
func (s *Service) List() ([]Summary, error) {
	names, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}

	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		doc, err := s.store.Read(name)
		if err != nil {
			s.logger.Warn("skipping unreadable department", "department", name, "error", err)
			continue
		}
		summaries = append(summaries, Summary{Name: name, Protected: doc.Protected()})
	}
	return summaries, nil
}

// Create provisions a new empty department document at revision 1.
func (s *Service) Create(department, createdBy string) (string, error) {
	name, err := NormalizeName(department)
	if err != nil {
		return "", err
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	exists, err := s.store.Exists(name)
	if err != nil {
		return "", fmt.Errorf("checking department: %w", err)
	}
	if exists {
		return "", ErrAlreadyExists
	}

	doc := &Document{
		Password: nil,
		Projects: []Project{},
		Meta: Meta{
			UpdatedAt: time.Now(),
			UpdatedBy: createdBy,
			Revision:  1,
		},
	}
	if err := s.store.Write(name, doc); err != nil {
		return "", fmt.Errorf("writing department: %w", err)
	}
	s.logger.Info("department created", "department", name, "by", createdBy)
	return name, nil
}

// Delete removes a department document and its backup.
func (s *Service) Delete(department string) error {
	name, err := NormalizeName(department)
	if err != nil {
		return err
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	exists, err := s.store.Exists(name)
	if err != nil {
		return fmt.Errorf("checking department: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return s.store.Delete(name)
}

// Save replaces the department's projects, guarded by the revision check.
// The caller must hold the edit lease and present the revision it last
// read; a mismatch rejects without applying anything.
func (s *Service) Save(department, userName string, projects []Project, expectedRevision int64) (*Meta, error) {
	name, err := NormalizeName(department)
	if err != nil {
		return nil, err
	}
	if !s.locks.IsOwner(name, userName) {
		return nil, ErrLockRequired
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}

	if doc.Meta.Revision != expectedRevision {
		metrics.RevisionMismatchTotal.Inc()
		return nil, &RevisionMismatchError{
			Expected: expectedRevision,
			Current:  doc.Meta.Revision,
			Meta:     doc.Meta,
		}
	}

	next := *doc
	next.Projects = projects
	if verr := Validate(&next); verr != nil {
		return nil, verr
	}
	EnsureIDs(&next)
	next.Meta = Meta{
		UpdatedAt: time.Now(),
		UpdatedBy: userName,
		Revision:  expectedRevision + 1,
	}

	if err := s.store.Write(name, &next); err != nil {
		return nil, err
	}
	metrics.SaveTotal.Inc()
	s.logger.Info("document saved",
		"department", name, "by", userName, "revision", next.Meta.Revision)
	meta := next.Meta
	return &meta, nil
}

// Import replaces the whole document with an imported one. Unlike Save it
// carries no client-observed revision: the write is last-writer-wins,
// bumping the incoming document's own revision. Still lock-gated and
// serialized against revision-checked saves.
func (s *Service) Import(department, userName string, incoming *Document) (*Meta, error) {
	name, err := NormalizeName(department)
	if err != nil {
		return nil, err
	}
	if !s.locks.IsOwner(name, userName) {
		return nil, ErrLockRequired
	}
	if verr := Validate(incoming); verr != nil {
		return nil, verr
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}

	next := *incoming
	// The password gate never travels in export/import payloads, so the
	// stored one survives the replacement.
	next.Password = current.Password
	EnsureIDs(&next)
	next.Meta = Meta{
		UpdatedAt: time.Now(),
		UpdatedBy: userName,
		Revision:  incoming.Meta.Revision + 1,
	}

	if err := s.store.Write(name, &next); err != nil {
		return nil, err
	}
	metrics.SaveTotal.Inc()
	s.logger.Info("document imported",
		"department", name, "by", userName, "revision", next.Meta.Revision)
	meta := next.Meta
	return &meta, nil
}

// Upload replaces the department's projects from an uploaded JSON file.
// Like Import it skips the revision check: the current revision at call
// time is bumped, whatever it is.
func (s *Service) Upload(department, userName string, payload []byte) (*Meta, error) {
	name, err := NormalizeName(department)
	if err != nil {
		return nil, err
	}
	if !s.locks.IsOwner(name, userName) {
		return nil, ErrLockRequired
	}

	var incoming Document
	if err := json.Unmarshal(payload, &incoming); err != nil {
		return nil, ErrInvalidUpload
	}
	if verr := Validate(&incoming); verr != nil {
		return nil, verr
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}

	next := *doc
	next.Projects = incoming.Projects
	EnsureIDs(&next)
	next.Meta = Meta{
		UpdatedAt: time.Now(),
		UpdatedBy: userName,
		Revision:  doc.Meta.Revision + 1,
	}

	if err := s.store.Write(name, &next); err != nil {
		return nil, err
	}
	metrics.SaveTotal.Inc()
	s.logger.Info("document uploaded",
		"department", name, "by", userName, "revision", next.Meta.Revision)
	meta := next.Meta
	return &meta, nil
}

// VerifyPassword checks the department access gate. Departments without a
// password admit everyone.
func (s *Service) VerifyPassword(department, password string) error {
	doc, err := s.Get(department)
	if err != nil {
		return err
	}
	if !doc.Protected() {
		return nil
	}
	if *doc.Password != password {
		return ErrInvalidPassword
	}
	return nil
}

// ChangePassword updates the access gate. When no password is set yet the
// old password is not checked (first-time setup).
func (s *Service) ChangePassword(department, oldPassword, newPassword string) error {
	name, err := NormalizeName(department)
	if err != nil {
		return err
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.store.Read(name)
	if err != nil {
		return err
	}
	if doc.Protected() && *doc.Password != oldPassword {
		return ErrInvalidPassword
	}
	return s.writePassword(name, doc, newPassword, "password_change")
}

// ResetPassword overwrites the access gate without the old password.
// Privileged callers only.
func (s *Service) ResetPassword(department, newPassword string) error {
	name, err := NormalizeName(department)
	if err != nil {
		return err
	}

	mu := s.deptMu(name)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.store.Read(name)
	if err != nil {
		return err
	}
	return s.writePassword(name, doc, newPassword, "admin")
}

func (s *Service) writePassword(name string, doc *Document, newPassword, updatedBy string) error {
	next := *doc
	if newPassword == "" {
		next.Password = nil
	} else {
		next.Password = &newPassword
	}
	next.Meta = Meta{
		UpdatedAt: time.Now(),
		UpdatedBy: updatedBy,
		Revision:  doc.Meta.Revision + 1,
	}
	return s.store.Write(name, &next)
}

func (s *Service) deptMu(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.deptMus[name]
	if !ok {
		mu = &sync.Mutex{}
		s.deptMus[name] = mu
	}
	return mu
}
