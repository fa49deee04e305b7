package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/xiaot623/trustbook/internal/domain"
)

// SaveIdentity replaces the agent's binding in a single statement, so
// concurrent readers observe either the previous or the new row.
func (s *SQLiteStore) SaveIdentity(ctx context.Context, b *domain.IdentityBinding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_identities (agent_id, certificate_pem, cert_fingerprint, public_key_pem, public_key_fingerprint, bound_at, public_key_bound_at, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			certificate_pem = excluded.certificate_pem,
			cert_fingerprint = excluded.cert_fingerprint,
			public_key_pem = excluded.public_key_pem,
			public_key_fingerprint = excluded.public_key_fingerprint,
			bound_at = excluded.bound_at,
			public_key_bound_at = excluded.public_key_bound_at,
			verified_at = excluded.verified_at`,
		b.AgentID,
		nullString(b.CertificatePEM), nullString(b.CertFingerprint),
		nullString(b.PublicKeyPEM), nullString(b.PublicKeyFingerprint),
		nullTime(b.BoundAt), nullTime(b.PublicKeyBoundAt), nullTime(b.VerifiedAt))
	return err
}

// GetIdentity retrieves an agent's binding. Returns nil when none exists.
func (s *SQLiteStore) GetIdentity(ctx context.Context, agentID string) (*domain.IdentityBinding, error) {
	var b domain.IdentityBinding
	var certPEM, certFP, pubPEM, pubFP sql.NullString
	var boundAt, pubBoundAt, verifiedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT agent_id, certificate_pem, cert_fingerprint, public_key_pem, public_key_fingerprint, bound_at, public_key_bound_at, verified_at
		FROM agent_identities WHERE agent_id = ?`, agentID).
		Scan(&b.AgentID, &certPEM, &certFP, &pubPEM, &pubFP, &boundAt, &pubBoundAt, &verifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.CertificatePEM = certPEM.String
	b.CertFingerprint = certFP.String
	b.PublicKeyPEM = pubPEM.String
	b.PublicKeyFingerprint = pubFP.String
	b.BoundAt = timePtr(boundAt)
	b.PublicKeyBoundAt = timePtr(pubBoundAt)
	b.VerifiedAt = timePtr(verifiedAt)
	return &b, nil
}

// MarkIdentityVerified stamps verified_at the first time a signature made
// with the certificate identified by fingerprint verifies. It reports whether
// a row changed. A rebind in between changes the fingerprint, so a stale
// verification never marks the new certificate.
func (s *SQLiteStore) MarkIdentityVerified(ctx context.Context, agentID, fingerprint string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_identities SET verified_at = ?
		WHERE agent_id = ? AND cert_fingerprint = ? AND verified_at IS NULL`,
		at, agentID, fingerprint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
