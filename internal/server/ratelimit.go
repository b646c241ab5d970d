package server

import (
	"sync"
	"time"
)

// Defaults applied per client address.
const (
	DefaultRateLimit  = 10
	DefaultRateWindow = time.Minute
)

// RateLimiter allows max requests per key in fixed windows.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*rateBucket
}

type rateBucket struct {
	count  int
	window time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      max,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*rateBucket),
	}
}

func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.counters[key]
	if !ok || now.Sub(b.window) > l.window {
		l.counters[key] = &rateBucket{count: 1, window: now}
		return true
	}
	if b.count >= l.max {
		return false
	}
	b.count++
	return true
}

// Cleanup forgets keys whose window has expired.
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.counters {
		if now.Sub(b.window) > l.window {
			delete(l.counters, key)
		}
	}
}
