package analyses

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	pollLimitWindow = time.Second
	maxTrackedPolls = 10_000
)

type pollKey struct {
	user, analysis string
}

// pollLimiter allows one status poll per user and analysis per window. The
// last poll time per key lives in a bounded LRU whose entries expire on
// their own, so abandoned polls do not accumulate.
type pollLimiter struct {
	mu     sync.Mutex
	last   *expirable.LRU[pollKey, time.Time]
	now    func() time.Time
	window time.Duration
}

func newPollLimiter(window time.Duration, now func() time.Time) *pollLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = pollLimitWindow
	}
	return &pollLimiter{
		last:   expirable.NewLRU[pollKey, time.Time](maxTrackedPolls, nil, 2*window),
		now:    now,
		window: window,
	}
}

func (l *pollLimiter) Allow(userID, analysisID string) bool {
	if l == nil {
		return true
	}
	key := pollKey{user: userID, analysis: analysisID}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last.Peek(key); ok && now.Sub(prev) < l.window {
		return false
	}
	l.last.Add(key, now)
	return true
}

// RetryAfterSeconds is the Retry-After value for a rejected poll.
func (l *pollLimiter) RetryAfterSeconds() int {
	if l == nil || l.window < time.Second {
		return 1
	}
	return int(l.window / time.Second)
}
