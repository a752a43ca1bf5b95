package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 30 * time.Minute
	limiterSweep   = 5 * time.Minute
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimits hands out one token bucket per Slack user. Buckets idle for
// limiterIdleTTL are dropped on the next sweep.
type userLimits struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*userLimiter
	lastSweep time.Time
}

func newUserLimits(perSecond float64, burst int) *userLimits {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &userLimits{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		now:       time.Now,
		limiters:  make(map[string]*userLimiter),
		lastSweep: time.Now(),
	}
}

// Allow reports whether user may issue another command now. A nil
// userLimits allows everything.
func (u *userLimits) Allow(user string) bool {
	if u == nil {
		return true
	}
	now := u.now()

	u.mu.Lock()
	defer u.mu.Unlock()

	if now.Sub(u.lastSweep) >= limiterSweep {
		u.sweep(now)
	}
	l, ok := u.limiters[user]
	if !ok {
		l = &userLimiter{limiter: rate.NewLimiter(u.limit, u.burst)}
		u.limiters[user] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// sweep drops idle limiters. Callers hold mu.
func (u *userLimits) sweep(now time.Time) {
	cutoff := now.Add(-limiterIdleTTL)
	for user, l := range u.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(u.limiters, user)
		}
	}
	u.lastSweep = now
}
