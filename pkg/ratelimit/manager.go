package ratelimit

import (
	"sync"
	"time"
)

// Manager keeps one bucket per upstream source so all clients of the same
// API share a single request budget within the process.
type Manager struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewManager creates an empty bucket manager.
func NewManager() *Manager {
	return &Manager{
		buckets: make(map[string]*Bucket),
	}
}

// GetOrCreate returns the bucket registered under name, creating it with the
// given quota if it does not exist yet. An existing bucket keeps its original
// quota; capacity and window arguments are ignored for it.
func (m *Manager) GetOrCreate(name string, capacity int, window time.Duration) (*Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buckets[name]; ok {
		return b, nil
	}

	b, err := NewBucket(name, capacity, window)
	if err != nil {
		return nil, err
	}
	m.buckets[name] = b
	return b, nil
}

// Stats returns snapshots for all registered buckets keyed by name.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.buckets))
	for name, b := range m.buckets {
		out[name] = b.Stats()
	}
	return out
}
