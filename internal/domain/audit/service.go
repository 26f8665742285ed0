package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrInvalidInput indicates a nil audit entry.
var ErrInvalidInput = errors.New("invalid audit input")

// Service handles audit log operations. Audit failures are logged, never
// propagated to request outcomes: a broken audit store must not make
// departments unavailable.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new audit service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Record logs an audit entry, stamping the current time when missing.
func (s *Service) Record(ctx context.Context, entry *Entry) {
	if entry == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			"type", entry.EventType, "department", entry.Department, "error", err)
	}
}

// Recent lists audit entries with filtering.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	entries, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	return entries, nil
}
