package ratelimiter

import (
	"sync"
	"time"
)

// Limiter allows one action per interval and counts the actions it rejected
// in between. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	now         func() time.Time
	lastAllowed time.Time
	suppressed  int
}

// New creates a new rate limiter with the specified interval.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether an action may run now. When it may, it also returns
// how many actions were rejected since the previous allowed one.
func (l *Limiter) Allow() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastAllowed.IsZero() || now.Sub(l.lastAllowed) >= l.interval {
		suppressed := l.suppressed
		l.lastAllowed = now
		l.suppressed = 0
		return true, suppressed
	}

	l.suppressed++
	return false, 0
}

// Reset clears the limiter state, allowing the next action immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastAllowed = time.Time{}
	l.suppressed = 0
	l.mu.Unlock()
}
