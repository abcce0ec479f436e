package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter throttles outbound crawl requests per target host. It is an
// injected component so the crawler's politeness policy can be tested and
// swapped for a distributed limiter later.
type HostLimiter struct {
	rps      float64
	burst    int
	limiters map[string]*hostEntry
	mu       sync.Mutex
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if rps <= 0 {
		rps = 2.0
	}
	if burst <= 0 {
		burst = 4
	}
	return &HostLimiter{
		rps:      rps,
		burst:    burst,
		limiters: make(map[string]*hostEntry),
	}
}

// Wait blocks until a request to host is allowed or the context is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.entry(host).limiter.Wait(ctx)
}

// Allow reports whether a request to host may proceed immediately.
func (h *HostLimiter) Allow(host string) bool {
	return h.entry(host).limiter.Allow()
}

func (h *HostLimiter) entry(host string) *hostEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.limiters[host]
	if !ok {
		entry = &hostEntry{
			limiter: rate.NewLimiter(rate.Limit(h.rps), h.burst),
		}
		h.limiters[host] = entry
	}
	entry.lastSeen = time.Now()
	return entry
}

// Cleanup drops limiters idle for longer than maxAge.
func (h *HostLimiter) Cleanup(maxAge time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for host, entry := range h.limiters {
		if now.Sub(entry.lastSeen) > maxAge {
			delete(h.limiters, host)
		}
	}
}
