package api

import (
	"sync"
	"sync/atomic"
	"time"

	"playchrono/internal/config"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiter hands out one token bucket per client key. Buckets idle for
// longer than limiterIdleTTL are dropped.
type rateLimiter struct {
	limiters  sync.Map
	cfg       config.APIRateLimitConfig
	now       func() time.Time
	lastSweep atomic.Int64
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	return &rateLimiter{
		cfg: cfg,
		now: time.Now,
	}
}

func (l *rateLimiter) enabled() bool {
	return l.cfg.RPS > 0
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	now := l.now()
	l.sweep(now)

	if v, ok := l.limiters.Load(key); ok {
		b := v.(*bucket)
		b.lastSeen.Store(now.UnixNano())
		return b.lim
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	b := &bucket{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)}
	b.lastSeen.Store(now.UnixNano())
	actual, _ := l.limiters.LoadOrStore(key, b)
	return actual.(*bucket).lim
}

func (l *rateLimiter) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(limiterSweepInterval) || !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-limiterIdleTTL).UnixNano()
	l.limiters.Range(func(k, v any) bool {
		if v.(*bucket).lastSeen.Load() < cutoff {
			l.limiters.Delete(k)
		}
		return true
	})
}

func (l *rateLimiter) size() int {
	n := 0
	l.limiters.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
