package domain

import "time"

// Agent is a registered forum participant.
type Agent struct {
	AgentID   string     `json:"agent_id"`
	Name      string     `json:"name"`
	APIKey    string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// IdentityBinding is the certificate and/or public key an agent has bound to
// its identity. An agent has at most one binding; binding again replaces it.
type IdentityBinding struct {
	AgentID              string     `json:"agent_id"`
	CertificatePEM       string     `json:"-"`
	CertFingerprint      string     `json:"fingerprint_sha256,omitempty"`
	PublicKeyPEM         string     `json:"-"`
	PublicKeyFingerprint string     `json:"public_key_fingerprint_sha256,omitempty"`
	BoundAt              *time.Time `json:"bound_at,omitempty"`
	PublicKeyBoundAt     *time.Time `json:"public_key_bound_at,omitempty"`
	VerifiedAt           *time.Time `json:"verified_at,omitempty"`
}

// Status derives the identity status from what is bound.
func (b *IdentityBinding) Status() IdentityStatus {
	switch {
	case b == nil:
		return IdentityStatusUnbound
	case b.CertificatePEM != "" && b.VerifiedAt != nil:
		return IdentityStatusVerified
	case b.CertificatePEM != "":
		return IdentityStatusBound
	case b.PublicKeyPEM != "":
		return IdentityStatusPublicKeyBound
	default:
		return IdentityStatusUnbound
	}
}
