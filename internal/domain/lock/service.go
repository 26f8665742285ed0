package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onlygantt/ganttd/internal/metrics"
)

// Service coordinates lease-based mutual exclusion per department. It owns
// the acquire/heartbeat/release state machine; the store only persists.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	// mu serializes state transitions so a check-then-set never interleaves
	// with another request for the same map.
	mu sync.Mutex
}

// NewService creates a new lock coordinator with the given lease TTL.
func NewService(store Store, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ttl: ttl, logger: logger}
}

// Acquire claims the department lease for userName. An expired or absent
// lease is always claimable; a live lease held by the same user is renewed
// in place, preserving LockedAt. A live lease held by anyone else yields a
// *ConflictError carrying the current holder.
func (s *Service) Acquire(department, userName string, ownerType OwnerType, clientHost string) (*Lock, error) {
	if department == "" || userName == "" {
		return nil, ErrInvalidInput
	}
	if ownerType != OwnerAdmin {
		ownerType = OwnerUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)

	existing, ok := s.store.Get(department)
	if ok && existing.OwnerUserName != userName {
		metrics.ConflictTotal.Inc()
		return nil, &ConflictError{Current: *existing}
	}

	next := Lock{
		Department:      department,
		OwnerUserName:   userName,
		OwnerType:       ownerType,
		ClientHost:      clientHost,
		LockedAt:        now,
		ExpiresAt:       now.Add(s.ttl),
		LastHeartbeatAt: now,
	}
	if ok {
		// Same-owner re-acquire keeps the original acquisition time.
		next.LockedAt = existing.LockedAt
	}
	if err := s.store.Set(department, next); err != nil {
		return nil, fmt.Errorf("persisting lock: %w", err)
	}

	metrics.AcquireTotal.Inc()
	s.logger.Info("lock acquired",
		"department", department, "owner", userName, "renewed", ok)
	return &next, nil
}

// Heartbeat extends the lease held by userName. Any other state, including
// an expired lease, yields ErrNotOwned: the client must stop assuming it
// holds the lock and re-acquire.
func (s *Service) Heartbeat(department, userName string) error {
	if department == "" || userName == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)

	existing, ok := s.store.Get(department)
	if !ok || existing.OwnerUserName != userName {
		return ErrNotOwned
	}

	next := *existing
	next.ExpiresAt = now.Add(s.ttl)
	next.LastHeartbeatAt = now
	if err := s.store.Set(department, next); err != nil {
		return fmt.Errorf("persisting lock: %w", err)
	}

	metrics.HeartbeatTotal.Inc()
	return nil
}

// Release drops the lease if userName holds it and reports whether it did.
// Releasing a lease you do not hold is a no-op: release is advisory and
// must stay idempotent.
func (s *Service) Release(department, userName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.store.Get(department)
	if !ok || existing.OwnerUserName != userName {
		return false, nil
	}
	if _, err := s.store.Remove(department); err != nil {
		return false, fmt.Errorf("removing lock: %w", err)
	}
	s.logger.Info("lock released", "department", department, "owner", userName)
	return true, nil
}

// AdminRelease unconditionally drops the department lease. Privileged;
// used to recover from an unresponsive holder.
func (s *Service) AdminRelease(department string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.Remove(department)
	if err != nil {
		return fmt.Errorf("removing lock: %w", err)
	}
	if removed {
		s.logger.Warn("lock released by admin override", "department", department)
	}
	return nil
}

// Status returns the live lock for a department, or nil when unlocked.
// Expired leases are swept before answering.
func (s *Service) Status(department string) *Lock {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(time.Now())
	existing, ok := s.store.Get(department)
	if !ok {
		return nil
	}
	snapshot := *existing
	return &snapshot
}

// IsOwner reports whether userName holds the live lease for department.
func (s *Service) IsOwner(department, userName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(time.Now())
	existing, ok := s.store.Get(department)
	return ok && existing.OwnerUserName == userName
}

// Sweep removes expired leases and returns how many were dropped.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(time.Now())
}

// StartSweep runs the expiry sweep on a fixed interval until ctx is
// cancelled. Staleness is bounded by this ticker even with no traffic.
func (s *Service) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					s.logger.Info("expiry sweep", "removed", removed)
				}
			}
		}
	}()
}

func (s *Service) sweep(now time.Time) int {
	removed, err := s.store.SweepExpired(now)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return 0
	}
	if removed > 0 {
		metrics.SweepRemovedTotal.Add(float64(removed))
	}
	return removed
}
