package usage

import "time"

const (
	// DefaultLimit is the number of free analyses per period.
	DefaultLimit = 10
	// Period is the length of a usage window.
	Period = 7 * 24 * time.Hour
)

// Usage is a user's free-analysis consumption for the current window.
type Usage struct {
	Limit    int       `json:"limit"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resetsAt"`
}

// Remaining returns how many analyses are left in the window.
func (u Usage) Remaining() int {
	if u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}

func freshUsage(limit int, now time.Time) Usage {
	return Usage{Limit: limit, Used: 0, ResetsAt: now.Add(Period)}
}

// expired reports whether the window ended at or before now.
func (u Usage) expired(now time.Time) bool {
	return !now.Before(u.ResetsAt)
}
