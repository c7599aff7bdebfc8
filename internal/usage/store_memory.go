package usage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps usage in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Usage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Usage)}
}

func (s *MemoryStore) EnsurePeriod(ctx context.Context, userID string, limit int, now time.Time) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(userID, limit, now), nil
}

func (s *MemoryStore) Consume(ctx context.Context, userID string, n, limit int, now time.Time) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.ensureLocked(userID, limit, now)
	if n <= 0 {
		return u, nil
	}
	if u.Used+n > u.Limit {
		return u, ErrLimitReached
	}
	u.Used += n
	s.data[userID] = u
	return u, nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID string, limit int, now time.Time) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := freshUsage(limit, now)
	s.data[userID] = u
	return u, nil
}

func (s *MemoryStore) ensureLocked(userID string, limit int, now time.Time) Usage {
	u, ok := s.data[userID]
	if !ok || u.expired(now) {
		u = freshUsage(limit, now)
	}
	u.Limit = limit
	s.data[userID] = u
	return u
}
