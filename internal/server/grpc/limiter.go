package grpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 10 * time.Minute
	limiterMaxKeys = 10000
)

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// keyedLimiter holds one token bucket per key. Idle buckets are dropped once
// the table grows past limiterMaxKeys.
type keyedLimiter struct {
	mu    sync.Mutex
	r     rate.Limit
	burst int
	keys  map[string]*limiterEntry
	now   func() time.Time
}

func newKeyedLimiter(r rate.Limit, burst int) *keyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &keyedLimiter{r: r, burst: burst, keys: make(map[string]*limiterEntry), now: time.Now}
}

func (k *keyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	e, ok := k.keys[key]
	if !ok {
		if len(k.keys) >= limiterMaxKeys {
			k.prune(now)
		}
		e = &limiterEntry{lim: rate.NewLimiter(k.r, k.burst)}
		k.keys[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

func (k *keyedLimiter) prune(now time.Time) {
	for key, e := range k.keys {
		if now.Sub(e.seen) > limiterIdleTTL {
			delete(k.keys, key)
		}
	}
}
