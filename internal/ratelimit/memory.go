package ratelimit

import (
	"sync"
	"time"
)

// memoryWindow is the in-process sliding window used without Redis.
type memoryWindow struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func newMemoryWindow() *memoryWindow {
	return &memoryWindow{hits: make(map[string][]time.Time)}
}

func (m *memoryWindow) hit(key string, now time.Time, limit int, window time.Duration) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-window)
	if now.Sub(m.lastSweep) >= window {
		m.sweep(cutoff)
		m.lastSweep = now
	}

	hits := prune(m.hits[key], cutoff)
	if len(hits) >= limit {
		m.hits[key] = hits
		return Result{RetryAfter: max(hits[0].Add(window).Sub(now), time.Second)}
	}

	hits = append(hits, now)
	m.hits[key] = hits
	return Result{Allowed: true, Remaining: limit - len(hits)}
}

// sweep drops keys with no hits after cutoff.
func (m *memoryWindow) sweep(cutoff time.Time) {
	for key, hits := range m.hits {
		if len(prune(hits, cutoff)) == 0 {
			delete(m.hits, key)
		}
	}
}

// prune drops hits at or before cutoff. hits is in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
