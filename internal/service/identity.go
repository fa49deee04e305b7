package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/identity"
)

// IdentityInput is a certificate and/or public key offered for binding.
type IdentityInput struct {
	CertificatePEM string `json:"certificate_pem,omitempty"`
	PublicKeyPEM   string `json:"public_key_pem,omitempty"`
}

// Empty reports whether nothing was offered.
func (in IdentityInput) Empty() bool {
	return strings.TrimSpace(in.CertificatePEM) == "" && strings.TrimSpace(in.PublicKeyPEM) == ""
}

// IdentityInfo is the public identity summary of an agent. The certificate
// itself is not exposed since its subject may carry personal data.
type IdentityInfo struct {
	Status               domain.IdentityStatus `json:"status"`
	HasPublicKey         bool                  `json:"has_public_key"`
	Fingerprint          string                `json:"fingerprint_sha256,omitempty"`
	PublicKeyFingerprint string                `json:"public_key_fingerprint_sha256,omitempty"`
	IssuerCN             string                `json:"issuer_cn,omitempty"`
	NotBefore            *time.Time            `json:"not_before,omitempty"`
	NotAfter             *time.Time            `json:"not_after,omitempty"`
	BoundAt              *time.Time            `json:"bound_at,omitempty"`
	PublicKeyBoundAt     *time.Time            `json:"public_key_bound_at,omitempty"`
	VerifiedAt           *time.Time            `json:"verified_at,omitempty"`
}

// BindIdentity binds or replaces the agent's certificate and/or public key.
// Binding a certificate clears any earlier verified mark.
func (s *Service) BindIdentity(ctx context.Context, agent *domain.Agent, in IdentityInput) (*AgentProfile, error) {
	if in.Empty() {
		return nil, fmt.Errorf("%w: certificate_pem or public_key_pem is required", ErrInvalidIdentity)
	}

	current, err := s.registry.Binding(ctx, agent.AgentID)
	if err != nil {
		return nil, err
	}
	next, err := buildBinding(current, in, s.now().UTC())
	if err != nil {
		return nil, err
	}
	stored, err := s.registry.Bind(ctx, agent.AgentID, next)
	if err != nil {
		return nil, err
	}

	s.metrics.IncBinding(string(stored.Status()))
	s.logger.Info("identity bound",
		zap.String("agent_id", agent.AgentID),
		zap.String("status", string(stored.Status())),
		zap.String("fingerprint", stored.CertFingerprint),
		zap.String("public_key_fingerprint", stored.PublicKeyFingerprint))

	return &AgentProfile{Agent: agent, Identity: s.identityInfo(stored)}, nil
}

// buildBinding validates in and derives the binding that replaces current.
func buildBinding(current *domain.IdentityBinding, in IdentityInput, now time.Time) (domain.IdentityBinding, error) {
	var next domain.IdentityBinding
	if current != nil {
		next = *current
	}
	certPEM := strings.TrimSpace(in.CertificatePEM)
	pubPEM := strings.TrimSpace(in.PublicKeyPEM)

	if certPEM != "" {
		cert, err := identity.ParseCertificatePEM(certPEM)
		if err != nil {
			return next, fmt.Errorf("%w: invalid certificate_pem: %v", ErrInvalidIdentity, err)
		}
		if pubPEM != "" {
			if err := cert.MatchesPublicKey(pubPEM); err != nil {
				return next, fmt.Errorf("%w: public_key_pem mismatch: %v", ErrInvalidIdentity, err)
			}
		} else {
			if pubPEM, err = cert.PublicKeyPEM(); err != nil {
				return next, fmt.Errorf("%w: invalid certificate_pem: %v", ErrInvalidIdentity, err)
			}
		}
		next.CertificatePEM = cert.PEM
		next.CertFingerprint = cert.Meta.FingerprintSHA256
		next.BoundAt = &now
		next.VerifiedAt = nil
	} else if next.CertificatePEM != "" {
		cert, err := identity.ParseCertificatePEM(next.CertificatePEM)
		if err == nil {
			if err := cert.MatchesPublicKey(pubPEM); err != nil {
				return next, fmt.Errorf("%w: public_key_pem mismatch current certificate: %v", ErrInvalidIdentity, err)
			}
		}
	}

	normalized, err := identity.NormalizePublicKeyPEM(pubPEM)
	if err != nil {
		return next, fmt.Errorf("%w: invalid public_key_pem: %v", ErrInvalidIdentity, err)
	}
	fingerprint, err := identity.PublicKeyFingerprint(normalized)
	if err != nil {
		return next, fmt.Errorf("%w: invalid public_key_pem: %v", ErrInvalidIdentity, err)
	}
	next.PublicKeyPEM = normalized
	next.PublicKeyFingerprint = fingerprint
	if next.PublicKeyBoundAt == nil {
		next.PublicKeyBoundAt = &now
	}
	return next, nil
}

func (s *Service) identityInfo(b *domain.IdentityBinding) IdentityInfo {
	info := IdentityInfo{Status: b.Status()}
	if b == nil {
		return info
	}
	info.HasPublicKey = b.PublicKeyPEM != ""
	info.PublicKeyFingerprint = b.PublicKeyFingerprint
	info.PublicKeyBoundAt = b.PublicKeyBoundAt
	if b.CertificatePEM == "" {
		return info
	}
	info.Fingerprint = b.CertFingerprint
	info.BoundAt = b.BoundAt
	info.VerifiedAt = b.VerifiedAt
	if cert, err := s.registry.Certificate(b); err == nil && cert != nil {
		notBefore, notAfter := cert.Meta.NotBefore, cert.Meta.NotAfter
		info.IssuerCN = cert.Meta.IssuerCN
		info.NotBefore = &notBefore
		info.NotAfter = &notAfter
	}
	return info
}
