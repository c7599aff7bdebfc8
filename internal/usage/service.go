package usage

import (
	"context"
	"errors"
	"time"

	"resume-ats/internal/shared/metrics"
)

// Store persists usage windows. Consume must be atomic per user.
type Store interface {
	EnsurePeriod(ctx context.Context, userID string, limit int, now time.Time) (Usage, error)
	Consume(ctx context.Context, userID string, n, limit int, now time.Time) (Usage, error)
	Reset(ctx context.Context, userID string, limit int, now time.Time) (Usage, error)
}

// Service enforces the free-analysis quota.
type Service struct {
	store Store
	limit int
	now   func() time.Time
}

// NewService constructs a Service with an in-memory store.
func NewService(limit int) *Service {
	return NewServiceWithStore(NewMemoryStore(), limit)
}

// NewServiceWithStore constructs a Service over store. A non-positive limit
// uses DefaultLimit.
func NewServiceWithStore(store Store, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{store: store, limit: limit, now: func() time.Time { return time.Now().UTC() }}
}

// Limit returns the configured per-window limit.
func (s *Service) Limit() int { return s.limit }

// Get returns the current window for a user, starting one if absent or expired.
func (s *Service) Get(ctx context.Context, userID string) (Usage, error) {
	return s.store.EnsurePeriod(ctx, userID, s.limit, s.now())
}

// CanConsume reports whether the user can consume n units.
func (s *Service) CanConsume(ctx context.Context, userID string, n int) (bool, Usage, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return false, Usage{}, err
	}
	if n <= 0 {
		return true, u, nil
	}
	return u.Used+n <= u.Limit, u, nil
}

// Consume increments usage by n, or returns ErrLimitReached.
func (s *Service) Consume(ctx context.Context, userID string, n int) (Usage, error) {
	u, err := s.store.Consume(ctx, userID, n, s.limit, s.now())
	if errors.Is(err, ErrLimitReached) {
		metrics.IncUsageLimitReached()
	}
	return u, err
}

// Reset zeroes usage and starts a new window.
func (s *Service) Reset(ctx context.Context, userID string) (Usage, error) {
	return s.store.Reset(ctx, userID, s.limit, s.now())
}
