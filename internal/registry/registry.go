// Package registry is the authoritative record of which certificate each
// agent has bound. Verification only reads from it.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/identity"
)

// Backend persists bindings. SaveIdentity must replace an agent's binding
// atomically with respect to GetIdentity.
type Backend interface {
	SaveIdentity(ctx context.Context, binding *domain.IdentityBinding) error
	GetIdentity(ctx context.Context, agentID string) (*domain.IdentityBinding, error)
}

// Registry binds and looks up agent certificates.
type Registry struct {
	backend Backend

	mu     sync.RWMutex
	parsed map[string]*identity.Certificate // by certificate fingerprint
}

// New creates a registry over backend.
func New(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		parsed:  make(map[string]*identity.Certificate),
	}
}

// Bind replaces the agent's binding with b and returns the stored binding.
// Binding the same material twice is a no-op in effect.
func (r *Registry) Bind(ctx context.Context, agentID string, b domain.IdentityBinding) (*domain.IdentityBinding, error) {
	b.AgentID = agentID
	if err := r.backend.SaveIdentity(ctx, &b); err != nil {
		return nil, fmt.Errorf("failed to bind identity: %w", err)
	}
	return &b, nil
}

// Binding returns the agent's current binding, or nil.
func (r *Registry) Binding(ctx context.Context, agentID string) (*domain.IdentityBinding, error) {
	b, err := r.backend.GetIdentity(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return b, nil
}

// Lookup returns the agent's bound certificate, or nil when the agent has
// none. A binding with only a public key has no certificate.
func (r *Registry) Lookup(ctx context.Context, agentID string) (*identity.Certificate, error) {
	b, err := r.Binding(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return r.Certificate(b)
}

// Certificate parses the certificate held by b, reusing earlier parses of
// the same certificate.
func (r *Registry) Certificate(b *domain.IdentityBinding) (*identity.Certificate, error) {
	if b == nil || b.CertificatePEM == "" {
		return nil, nil
	}

	if b.CertFingerprint != "" {
		r.mu.RLock()
		cert, ok := r.parsed[b.CertFingerprint]
		r.mu.RUnlock()
		if ok {
			return cert, nil
		}
	}

	cert, err := identity.ParseCertificatePEM(b.CertificatePEM)
	if err != nil {
		return nil, fmt.Errorf("stored certificate for %s is unreadable: %w", b.AgentID, err)
	}
	r.mu.Lock()
	r.parsed[cert.Meta.FingerprintSHA256] = cert
	r.mu.Unlock()
	return cert, nil
}
