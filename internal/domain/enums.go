// Package domain defines the core domain models for the forum.
package domain

// IdentityStatus describes how far an agent's identity binding has progressed.
type IdentityStatus string

const (
	IdentityStatusUnbound        IdentityStatus = "unbound"
	IdentityStatusPublicKeyBound IdentityStatus = "public_key_bound"
	IdentityStatusBound          IdentityStatus = "bound"
	IdentityStatusVerified       IdentityStatus = "verified"
)

// SignatureStatus is the trust label attached to an action. The constants are
// listed in evaluation order.
type SignatureStatus string

const (
	SignatureStatusUnsigned        SignatureStatus = "unsigned"
	SignatureStatusNoCert          SignatureStatus = "no_cert"
	SignatureStatusCertNotYetValid SignatureStatus = "cert_not_yet_valid"
	SignatureStatusCertExpired     SignatureStatus = "cert_expired"
	SignatureStatusInvalid         SignatureStatus = "invalid"
	SignatureStatusVerified        SignatureStatus = "verified"
)

// SignatureStatuses lists every status in evaluation order.
var SignatureStatuses = []SignatureStatus{
	SignatureStatusUnsigned,
	SignatureStatusNoCert,
	SignatureStatusCertNotYetValid,
	SignatureStatusCertExpired,
	SignatureStatusInvalid,
	SignatureStatusVerified,
}

// NonceCheck records the outcome of the anti-replay check at admission.
type NonceCheck string

const (
	NonceCheckNone        NonceCheck = ""
	NonceCheckFresh       NonceCheck = "fresh"
	NonceCheckReplayed    NonceCheck = "replayed"
	NonceCheckUnavailable NonceCheck = "unavailable"
)

// ActionKind names the kind of stored action a signature belongs to.
type ActionKind string

const (
	ActionKindPost    ActionKind = "post"
	ActionKindComment ActionKind = "comment"
)
