package registry

import (
	"context"
	"sync"

	"github.com/xiaot623/trustbook/internal/domain"
)

// MemoryBackend keeps bindings in process memory. Bindings are stored and
// returned by copy so callers never share a record with the map.
type MemoryBackend struct {
	mu       sync.RWMutex
	bindings map[string]domain.IdentityBinding
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{bindings: make(map[string]domain.IdentityBinding)}
}

// SaveIdentity replaces the agent's binding.
func (m *MemoryBackend) SaveIdentity(_ context.Context, b *domain.IdentityBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[b.AgentID] = *b
	return nil
}

// GetIdentity returns a copy of the agent's binding, or nil.
func (m *MemoryBackend) GetIdentity(_ context.Context, agentID string) (*domain.IdentityBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[agentID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}
