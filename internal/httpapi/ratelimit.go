package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerLimiter throttles requests per caller. Callers identify themselves
// with the X-Caller-Id header; anonymous requests fall back to the remote IP.
type callerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*callerEntry
	rps      rate.Limit
	burst    int
}

type callerEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idle entries older than this are pruned opportunistically on lookup.
const limiterIdleTTL = 10 * time.Minute

func newCallerLimiter(rps float64, burst int) *callerLimiter {
	return &callerLimiter{
		limiters: make(map[string]*callerEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (c *callerLimiter) allow(caller string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.limiters[caller]
	if !ok {
		entry = &callerEntry{limiter: rate.NewLimiter(c.rps, c.burst), lastSeen: now}
		c.limiters[caller] = entry
		c.prune(now)
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (c *callerLimiter) prune(now time.Time) {
	for key, entry := range c.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(c.limiters, key)
		}
	}
}

// middleware rejects over-limit requests with 429 before they reach handlers.
func (c *callerLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(callerID(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Kind:    "RATE_LIMITED",
				Message: "request rate limit exceeded",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerID(r *http.Request) string {
	if caller := r.Header.Get("X-Caller-Id"); caller != "" {
		return caller
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
