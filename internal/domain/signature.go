package domain

import "time"

// SignatureRecord is the envelope retained with a stored action. Together
// with the stored body it is enough to recompute the verification result.
type SignatureRecord struct {
	// Raw envelope header values as received.
	Signature string `json:"signature"`
	Algorithm string `json:"algorithm,omitempty"`
	Timestamp string `json:"ts,omitempty"`
	Nonce     string `json:"nonce,omitempty"`

	// Request fields the canonical message was rebuilt from.
	Method     string `json:"method"`
	Path       string `json:"path"`
	SignerName string `json:"signer_name"`
	BodySHA256 string `json:"body_sha256"`

	ReceivedAt time.Time  `json:"received_at"`
	NonceCheck NonceCheck `json:"nonce_check,omitempty"`

	// Outcome at admission, kept for audit. Reads recompute the result.
	AdmissionStatus SignatureStatus `json:"admission_status"`
	AdmissionReason string          `json:"admission_reason,omitempty"`
}
