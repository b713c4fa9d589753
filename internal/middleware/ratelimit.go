package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// sweepInterval bounds how often idle buckets are evicted.
const sweepInterval = time.Minute

// TokenBucket is an in-memory per-IP rate limiter guarding the import and
// bulk-mutation endpoints. Buckets idle long enough to be full again are
// swept, so a scan from many source addresses cannot grow the map forever.
type TokenBucket struct {
	capacity  int
	rate      int
	idleAfter time.Duration
	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 1
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	// An entry idle past a full refill carries no state worth keeping.
	idle := time.Duration(capacity) * time.Minute / time.Duration(perMinute)
	if idle < sweepInterval {
		idle = sweepInterval
	}
	return &TokenBucket{
		capacity:  capacity,
		rate:      perMinute,
		idleAfter: idle,
		state:     make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// RateLimit returns a gin handler enforcing per-IP limits.
func (l *TokenBucket) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle past l.idleAfter. Caller holds l.mu.
func (l *TokenBucket) sweep(now time.Time) {
	for key, b := range l.state {
		if now.Sub(b.last) >= l.idleAfter {
			delete(l.state, key)
		}
	}
	l.lastSweep = now
}
