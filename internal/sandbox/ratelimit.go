package sandbox

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sql-sandbox/internal/domain"
)

// pruneInterval bounds how often stale limiters are scanned for.
const pruneInterval = time.Minute

// sessionLimiter tracks a per-session rate limiter and when it was last seen.
type sessionLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet enforces a token-bucket limit per session id.
type limiterSet struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	sessions  map[string]*sessionLimiter
	lastPrune time.Time
}

func newLimiterSet(rps float64, burst int, idleTTL time.Duration) *limiterSet {
	if burst < 1 {
		burst = 1
	}
	return &limiterSet{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*sessionLimiter),
	}
}

// allow takes one token for id or returns a *domain.RateLimitError carrying
// the time until a token is available.
func (l *limiterSet) allow(id string) error {
	now := l.now()
	limiter := l.get(id, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &domain.RateLimitError{SessionID: id}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &domain.RateLimitError{SessionID: id, RetryAfter: delay}
	}
	return nil
}

func (l *limiterSet) get(id string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.idleTTL > 0 && now.Sub(l.lastPrune) >= pruneInterval {
		for key, sl := range l.sessions {
			if now.Sub(sl.lastSeen) > l.idleTTL {
				delete(l.sessions, key)
			}
		}
		l.lastPrune = now
	}

	if sl, ok := l.sessions[id]; ok {
		sl.lastSeen = now
		return sl.limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.sessions[id] = &sessionLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// forget drops the limiter of an evicted session.
func (l *limiterSet) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, id)
}

func (l *limiterSet) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
