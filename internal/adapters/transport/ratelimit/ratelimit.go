// Package ratelimit keeps one token bucket per client address.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// PerKey hands out a limiter per key. Keys idle for longer than ttl are
// dropped and start again with a full bucket.
type PerKey struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors *expirable.LRU[string, *rate.Limiter]
}

func NewPerKey(limit, burst, cacheSize int, ttl time.Duration) *PerKey {
	return &PerKey{
		limit:    rate.Limit(limit),
		burst:    burst,
		visitors: expirable.NewLRU[string, *rate.Limiter](cacheSize, nil, ttl),
	}
}

func (p *PerKey) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.visitors.Get(key)
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
	}
	// re-adding refreshes the expiry
	p.visitors.Add(key, l)
	p.mu.Unlock()

	return l.Allow()
}
