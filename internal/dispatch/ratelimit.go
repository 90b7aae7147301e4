package dispatch

import (
	"sync"
	"time"
)

// keyLimiter enforces at most limit dispatches per window for each key.
// Each key holds a fixed-size ring of the last `limit` dispatch timestamps;
// a new dispatch is allowed when the oldest recorded timestamp has aged out
// of the window. Memory is bounded at one ring per active key.
type keyLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	rings  map[string]*ring
}

type ring struct {
	stamps []time.Time
	next   int
	filled bool
}

func newKeyLimiter(limit int, window time.Duration) *keyLimiter {
	return &keyLimiter{
		limit:  limit,
		window: window,
		rings:  make(map[string]*ring),
	}
}

// Allow reports whether a dispatch for key may proceed at time now, and
// records it if so. Suppressed dispatches are not recorded, so they do not
// extend the suppression window. A limit of zero or less suppresses every
// dispatch: operators set rate_limit_count=0 to silence alerting entirely.
func (l *keyLimiter) Allow(key string, now time.Time) bool {
	if l.limit <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rings[key]
	if !ok {
		r = &ring{stamps: make([]time.Time, l.limit)}
		l.rings[key] = r
	}

	if r.filled {
		oldest := r.stamps[r.next]
		if now.Sub(oldest) < l.window {
			return false
		}
	}

	r.stamps[r.next] = now
	r.next++
	if r.next == l.limit {
		r.next = 0
		r.filled = true
	}
	return true
}
