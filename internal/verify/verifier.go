// Package verify judges signed agent actions.
//
// Verify is a pure function of its inputs: the envelope and request fields
// retained with an action, the certificate bound at verification time, and the
// clock. It never fails; every outcome is a status with an optional reason.
package verify

import (
	"time"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/identity"
	"github.com/xiaot623/trustbook/internal/signing"
)

// DefaultFreshnessWindow bounds how far a signature timestamp may drift from
// the time the request was received, in either direction.
const DefaultFreshnessWindow = 5 * time.Minute

// ReasonSignatureMismatch is the reason given when the signature does not
// verify over the rebuilt canonical message.
const ReasonSignatureMismatch = "signature verification failed"

// Config holds verifier parameters.
type Config struct {
	FreshnessWindow time.Duration
}

// NonceRetention is how long a consumed nonce must be remembered. A nonce
// accepted at the earliest edge of the window stays replayable until the
// latest edge, so retention covers the window twice plus a second for the
// inclusive bounds.
func (c Config) NonceRetention() time.Duration {
	return 2*c.FreshnessWindow + time.Second
}

// Input is everything retained with an action that verification reads.
type Input struct {
	Headers signing.Headers

	// AgentName is the signer name the canonical message is rebuilt with.
	AgentName string
	Method    string
	Path      string
	Body      []byte

	// BodySHA256 is the digest recorded when the action was admitted. Empty
	// at admission time.
	BodySHA256 string

	// ReceivedAt anchors the freshness check. Zero means "now".
	ReceivedAt time.Time
	NonceCheck domain.NonceCheck
}

// Result is the verification outcome plus display fields.
type Result struct {
	Status domain.SignatureStatus `json:"status"`
	Reason string                 `json:"reason,omitempty"`
	Replay bool                   `json:"replay,omitempty"`

	Algorithm  string `json:"algorithm,omitempty"`
	Timestamp  string `json:"ts,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
	BodySHA256 string `json:"body_sha256,omitempty"`

	CertFingerprint     string     `json:"cert_fingerprint_sha256,omitempty"`
	CertSerialNumberHex string     `json:"cert_serial_number_hex,omitempty"`
	CertIssuerCN        string     `json:"cert_issuer_cn,omitempty"`
	CertOwnerID         string     `json:"cert_owner_id,omitempty"`
	CertAgentName       string     `json:"cert_agent_name,omitempty"`
	CertNotBefore       *time.Time `json:"cert_not_before,omitempty"`
	CertNotAfter        *time.Time `json:"cert_not_after,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}

// Verifier evaluates signatures in a fixed order: unsigned, no_cert,
// cert_not_yet_valid, cert_expired, invalid, verified.
type Verifier struct {
	cfg Config
}

// New creates a verifier. A zero FreshnessWindow selects the default.
func New(cfg Config) *Verifier {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	return &Verifier{cfg: cfg}
}

// Config returns the effective configuration.
func (v *Verifier) Config() Config {
	return v.cfg
}

// Verify judges in against cert at time now. cert is nil when the agent has
// no bound certificate.
func (v *Verifier) Verify(in Input, cert *identity.Certificate, now time.Time) Result {
	res := Result{CheckedAt: now.UTC()}

	if !in.Headers.Signed() {
		res.Status = domain.SignatureStatusUnsigned
		return res
	}

	res.Algorithm = in.Headers.Algorithm
	if res.Algorithm == "" {
		res.Algorithm = string(signing.DefaultAlgorithm)
	}
	res.Timestamp = in.Headers.Timestamp
	res.Nonce = in.Headers.Nonce
	digest := signing.BodyDigest(in.Body)
	res.BodySHA256 = digest

	if cert == nil {
		return res.with(domain.SignatureStatusNoCert, "agent has no bound certificate")
	}
	res.describe(cert)

	switch cert.CheckWindow(now) {
	case identity.BeforeWindow:
		return res.with(domain.SignatureStatusCertNotYetValid, "certificate not yet valid")
	case identity.AfterWindow:
		return res.with(domain.SignatureStatusCertExpired, "certificate expired")
	}

	if reason := v.checkSignature(in, cert, digest); reason != "" {
		return res.with(domain.SignatureStatusInvalid, reason)
	}
	if reason := v.checkFreshness(in, now); reason != "" {
		return res.with(domain.SignatureStatusInvalid, reason)
	}
	switch in.NonceCheck {
	case domain.NonceCheckReplayed:
		res.Replay = true
		return res.with(domain.SignatureStatusInvalid, "nonce already used")
	case domain.NonceCheckUnavailable:
		return res.with(domain.SignatureStatusInvalid, "nonce could not be checked")
	}

	res.Status = domain.SignatureStatusVerified
	return res
}

// CertificateUnavailable is the result when the bound certificate could not
// be loaded. Unsigned content stays unsigned.
func (v *Verifier) CertificateUnavailable(in Input, reason string, now time.Time) Result {
	res := Result{CheckedAt: now.UTC()}
	if !in.Headers.Signed() {
		res.Status = domain.SignatureStatusUnsigned
		return res
	}
	res.Algorithm = in.Headers.Algorithm
	res.Timestamp = in.Headers.Timestamp
	res.Nonce = in.Headers.Nonce
	res.BodySHA256 = signing.BodyDigest(in.Body)
	return res.with(domain.SignatureStatusInvalid, reason)
}

func (v *Verifier) checkSignature(in Input, cert *identity.Certificate, digest string) string {
	if name := cert.AgentClaim(); name != "" && name != in.AgentName {
		return "certificate agent name does not match signer"
	}
	if in.BodySHA256 != "" && in.BodySHA256 != digest {
		return "body digest mismatch"
	}

	alg, err := signing.ParseAlgorithm(in.Headers.Algorithm)
	if err != nil {
		return "unsupported algorithm: " + in.Headers.Algorithm
	}
	ts, err := signing.ParseTimestamp(in.Headers.Timestamp)
	if err != nil {
		return err.Error()
	}
	if in.Headers.Nonce == "" {
		return "missing nonce"
	}
	pub, err := cert.RSAPublicKey()
	if err != nil {
		return err.Error()
	}
	sig, err := in.Headers.DecodeSignature()
	if err != nil {
		return err.Error()
	}

	msg := signing.Message{
		Timestamp:  ts,
		Nonce:      in.Headers.Nonce,
		AgentName:  in.AgentName,
		Method:     in.Method,
		Path:       in.Path,
		BodySHA256: digest,
	}
	canonical, err := msg.Bytes()
	if err != nil {
		return err.Error()
	}
	if err := alg.VerifyRSA(pub, canonical, sig); err != nil {
		return ReasonSignatureMismatch
	}
	return ""
}

func (v *Verifier) checkFreshness(in Input, now time.Time) string {
	ts, err := signing.ParseTimestamp(in.Headers.Timestamp)
	if err != nil {
		return err.Error()
	}
	anchor := in.ReceivedAt
	if anchor.IsZero() {
		anchor = now
	}
	skew := anchor.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.cfg.FreshnessWindow {
		return "timestamp outside freshness window"
	}
	return ""
}

func (r Result) with(status domain.SignatureStatus, reason string) Result {
	r.Status = status
	r.Reason = reason
	return r
}

func (r *Result) describe(cert *identity.Certificate) {
	id := cert.Identity()
	notBefore := cert.Meta.NotBefore
	notAfter := cert.Meta.NotAfter
	r.CertFingerprint = cert.Meta.FingerprintSHA256
	r.CertSerialNumberHex = cert.Meta.SerialNumberHex
	r.CertIssuerCN = cert.Meta.IssuerCN
	r.CertOwnerID = id.OwnerID
	r.CertAgentName = id.AgentName
	r.CertNotBefore = &notBefore
	r.CertNotAfter = &notAfter
}
