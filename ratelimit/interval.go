package ratelimit

import (
	"sync"
	"time"
)

// DefaultInterval is the minimum time between extractions for one
// conversation.
const DefaultInterval = 60 * time.Second

// maxTrackedKeys bounds gate memory; when exceeded, entries older than
// the interval are pruned (they would allow anyway).
const maxTrackedKeys = 100_000

// IntervalGate allows at most one event per key per interval.
// It is safe for concurrent use.
type IntervalGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	nowFunc  func() time.Time // for testing
}

// NewIntervalGate creates a gate with the given minimum interval.
// A non-positive interval falls back to DefaultInterval.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &IntervalGate{
		interval: interval,
		last:     make(map[string]time.Time),
		nowFunc:  time.Now,
	}
}

// Allow reports whether an event for key may proceed now, and if so
// records it. Check and record are one atomic step, so concurrent
// callers for the same key admit exactly one.
func (g *IntervalGate) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	if last, ok := g.last[key]; ok && now.Sub(last) < g.interval {
		return false
	}

	if len(g.last) >= maxTrackedKeys {
		g.prune(now)
	}
	g.last[key] = now
	return true
}

// NextAllowed returns when the key may next proceed. The zero time
// means it may proceed immediately.
func (g *IntervalGate) NextAllowed(key string) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.last[key]
	if !ok {
		return time.Time{}
	}
	next := last.Add(g.interval)
	if !g.nowFunc().Before(next) {
		return time.Time{}
	}
	return next
}

// Reset forgets the key, allowing its next event immediately.
func (g *IntervalGate) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, key)
}

// prune drops entries whose interval has already elapsed.
// Caller must hold g.mu.
func (g *IntervalGate) prune(now time.Time) {
	for k, last := range g.last {
		if now.Sub(last) >= g.interval {
			delete(g.last, k)
		}
	}
}
