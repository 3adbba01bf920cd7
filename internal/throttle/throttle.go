// Package throttle keeps a token bucket per key, such as a client address or
// an email, and forgets keys that have gone quiet.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery bounds how often Allow scans for idle keys.
const sweepEvery = time.Minute

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Keyed throttles events per key.
type Keyed struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu    sync.Mutex
	keys  map[string]*entry
	swept time.Time
}

// New creates a Keyed allowing limit events per second per key with the
// given burst. A nil now uses time.Now.
func New(limit rate.Limit, burst int, now func() time.Time) *Keyed {
	if now == nil {
		now = time.Now
	}
	return &Keyed{
		limit: limit,
		burst: burst,
		idle:  refillTime(limit, burst),
		now:   now,
		keys:  make(map[string]*entry),
	}
}

// refillTime is how long an unused bucket takes to fill up again. After that
// it is no different from a new one.
func refillTime(limit rate.Limit, burst int) time.Duration {
	switch {
	case limit == rate.Inf:
		return 0
	case limit <= 0:
		return 24 * time.Hour
	}
	return time.Duration(float64(burst) / float64(limit) * float64(time.Second))
}

// Allow takes one event from key's budget.
func (k *Keyed) Allow(key string) bool {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.swept) >= sweepEvery {
		k.sweep(now)
	}

	e, ok := k.keys[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(k.limit, k.burst)}
		k.keys[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// sweep drops keys whose bucket has refilled since they were last used.
func (k *Keyed) sweep(now time.Time) {
	for key, e := range k.keys {
		if now.Sub(e.seen) >= k.idle {
			delete(k.keys, key)
		}
	}
	k.swept = now
}

// Len returns the number of keys being tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
