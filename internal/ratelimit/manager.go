package ratelimit

import "sync"

// Manager is a registry of TokenBuckets keyed by API name. It guarantees
// one bucket per name: concurrent first calls for the same new name create
// exactly one instance, and repeat calls return the existing bucket with
// the rate/capacity arguments silently ignored (first registration wins).
//
// The Manager is constructed by the process entry point and passed to
// whatever needs it — there is no package-level default instance.
type Manager struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{buckets: make(map[string]*TokenBucket)}
}

// GetLimiter returns the bucket registered under name, creating it on
// first use. The registry lock is held only for lookup-or-create, never
// across an acquire.
func (m *Manager) GetLimiter(name string, rate float64, capacity int) *TokenBucket {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buckets[name]; ok {
		return b
	}
	b := NewTokenBucket(name, rate, capacity)
	m.buckets[name] = b
	return b
}

// AllMetrics snapshots the counters of every registered bucket, keyed by
// bucket name.
func (m *Manager) AllMetrics() map[string]Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Metrics, len(m.buckets))
	for name, b := range m.buckets {
		out[name] = b.Metrics()
	}
	return out
}

// ResetAllMetrics zeroes the counters of every registered bucket.
func (m *Manager) ResetAllMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.buckets {
		b.ResetMetrics()
	}
}
