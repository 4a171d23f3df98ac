package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Limiter names
const (
	LimiterAnthropic = "anthropic"
	LimiterOpenAI    = "openai"
	LimiterRSS       = "rss"
	LimiterEmail     = "email"
	LimiterUnsplash  = "unsplash"
)

// Limits holds the per-service request budgets
type Limits struct {
	AIRequestsPerMinute    int
	SourceRequestsPerHour  int
	EmailRequestsPerMinute int
}

// New creates a limiter with the given budgets. Zero values fall back to the defaults.
func New(l Limits) *MultiLimiter {
	if l.AIRequestsPerMinute <= 0 {
		l.AIRequestsPerMinute = 10
	}
	if l.SourceRequestsPerHour <= 0 {
		l.SourceRequestsPerHour = 3600
	}
	if l.EmailRequestsPerMinute <= 0 {
		l.EmailRequestsPerMinute = 60
	}

	m := NewMultiLimiter()
	m.AddLimiter(LimiterAnthropic, float64(l.AIRequestsPerMinute)/60, 2)
	m.AddLimiter(LimiterOpenAI, float64(l.AIRequestsPerMinute)/60, 2)
	m.AddLimiter(LimiterRSS, float64(l.SourceRequestsPerHour)/3600, 10)
	m.AddLimiter(LimiterEmail, float64(l.EmailRequestsPerMinute)/60, 5)
	// Unsplash demo keys allow 50 requests per hour
	m.AddLimiter(LimiterUnsplash, 50.0/3600, 5)
	return m
}

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	return New(Limits{})
}

// KeyedLimiter keeps an independent token bucket per key (for example a client IP).
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedEntry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter allows max events per window for every key.
func NewKeyedLimiter(max int, window time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*keyedEntry),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		ttl:      window * 2,
	}
}

// Allow reports whether key may perform an event now and consumes a token if so.
func (k *KeyedLimiter) Allow(key string) bool {
	now := time.Now()

	k.mu.Lock()
	defer k.mu.Unlock()

	for id, e := range k.limiters {
		if now.Sub(e.lastSeen) > k.ttl {
			delete(k.limiters, id)
		}
	}

	e, ok := k.limiters[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
