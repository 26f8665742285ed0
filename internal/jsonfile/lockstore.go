package jsonfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/onlygantt/ganttd/internal/domain/lock"
)

// LockStore implements lock.Store on a single JSON snapshot file. The full
// map is rewritten synchronously on every mutation, so a completed Set or
// Remove is always on disk.
type LockStore struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]lock.Lock
}

type lockSnapshot struct {
	SavedAt time.Time   `json:"savedAt"`
	Locks   []lock.Lock `json:"locks"`
}

// NewLockStore creates the snapshot directory if needed.
func NewLockStore(path string, logger *slog.Logger) (*LockStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	return &LockStore{
		path:   path,
		logger: logger,
		locks:  make(map[string]lock.Lock),
	}, nil
}

// Load reads the persisted snapshot. Leases already expired at load time
// are dropped (a restart never resurrects them) and the pruned snapshot is
// re-persisted once. A corrupt snapshot is logged and treated as empty.
func (s *LockStore) Load(now time.Time) (loaded, expired int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading lock snapshot: %w", err)
	}

	var snapshot lockSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.logger.Warn("corrupt lock snapshot, starting empty", "path", s.path, "error", err)
		return 0, 0, nil
	}

	for _, l := range snapshot.Locks {
		if l.Department == "" {
			continue
		}
		if l.Expired(now) {
			expired++
			s.logger.Info("dropping expired lock from snapshot",
				"department", l.Department, "owner", l.OwnerUserName)
			continue
		}
		s.locks[l.Department] = l
		loaded++
	}

	if expired > 0 {
		if err := s.persist(); err != nil {
			return loaded, expired, err
		}
	}
	return loaded, expired, nil
}

// Get returns the lock for a department, expired or not.
func (s *LockStore) Get(department string) (*lock.Lock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[department]
	if !ok {
		return nil, false
	}
	snapshot := l
	return &snapshot, true
}

// Set stores a lock and persists the snapshot before returning.
func (s *LockStore) Set(department string, l lock.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[department] = l
	return s.persist()
}

// Remove deletes a lock, persisting only when something was removed.
func (s *LockStore) Remove(department string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locks[department]; !ok {
		return false, nil
	}
	delete(s.locks, department)
	return true, s.persist()
}

// SweepExpired drops every lease past its expiry at now.
func (s *LockStore) SweepExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for department, l := range s.locks {
		if l.Expired(now) {
			delete(s.locks, department)
			removed++
			s.logger.Info("expired lock removed",
				"department", department, "owner", l.OwnerUserName)
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.persist()
}

func (s *LockStore) persist() error {
	snapshot := lockSnapshot{
		SavedAt: time.Now(),
		Locks:   make([]lock.Lock, 0, len(s.locks)),
	}
	for _, l := range s.locks {
		snapshot.Locks = append(snapshot.Locks, l)
	}
	sort.Slice(snapshot.Locks, func(i, j int) bool {
		return snapshot.Locks[i].Department < snapshot.Locks[j].Department
	})
	return writeJSONAtomic(s.path, snapshot, false)
}
