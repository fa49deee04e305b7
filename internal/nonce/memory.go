package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps nonces in process memory. Suitable for a single server.
type MemoryStore struct {
	mu        sync.Mutex
	data      map[string]time.Time
	clock     Clock
	cleanup   *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a store that sweeps expired entries every
// cleanupInterval. Zero disables the sweeper; expired entries are still
// ignored on lookup.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		data:  make(map[string]time.Time),
		clock: SystemClock{},
		done:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		m.cleanup = time.NewTicker(cleanupInterval)
		go m.cleanupLoop()
	}
	return m
}

// WithClock sets a custom clock (for testing).
func (m *MemoryStore) WithClock(clock Clock) *MemoryStore {
	m.clock = clock
	return m
}

// Consume records the pair unless an unexpired entry exists. An entry is
// live up to and including its expiry instant.
func (m *MemoryStore) Consume(_ context.Context, agentID, nonce string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	k := key(agentID, nonce)
	if exp, ok := m.data[k]; ok && !now.After(exp) {
		return false, nil
	}
	m.data[k] = now.Add(ttl)
	return true, nil
}

// Len returns the number of tracked entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.cleanup.C:
			m.removeExpired()
		case <-m.done:
			return
		}
	}
}

func (m *MemoryStore) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for k, exp := range m.data {
		if now.After(exp) {
			delete(m.data, k)
		}
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.cleanup != nil {
			m.cleanup.Stop()
		}
	})
	return nil
}
