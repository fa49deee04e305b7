// Package identity parses the certificates and public keys agents bind to
// their forum identity, and extracts the metadata shown next to signed content.
package identity

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	oidCommonName   = asn1.ObjectIdentifier{2, 5, 4, 3}
	oidSerialNumber = asn1.ObjectIdentifier{2, 5, 4, 5}
	oidOrganization = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrgUnit      = asn1.ObjectIdentifier{2, 5, 4, 11}
	oidUserID       = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
)

// Metadata is the display information derived from a certificate.
type Metadata struct {
	FingerprintSHA256    string    `json:"fingerprint_sha256"`
	SerialNumberHex      string    `json:"serial_number_hex"`
	IssuerCN             string    `json:"issuer_cn,omitempty"`
	SubjectCN            string    `json:"subject_cn,omitempty"`
	SubjectSerialNumber  string    `json:"subject_serial_number,omitempty"`
	SubjectUID           string    `json:"subject_uid,omitempty"`
	SubjectOU            string    `json:"subject_ou,omitempty"`
	SubjectO             string    `json:"subject_o,omitempty"`
	SubjectRDNValue      string    `json:"subject_rdn_value,omitempty"`
	SubjectIdentityValue string    `json:"subject_identity_value,omitempty"`
	NotBefore            time.Time `json:"not_before"`
	NotAfter             time.Time `json:"not_after"`
	PublicKeyType        string    `json:"public_key_type"`
}

// Certificate is a parsed agent identity certificate.
type Certificate struct {
	PEM  string
	X509 *x509.Certificate
	Meta Metadata
}

// ParseCertificatePEM parses a PEM encoded X.509 certificate.
func ParseCertificatePEM(data string) (*Certificate, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, errors.New("empty certificate")
	}
	block, _ := pem.Decode([]byte(trimmed))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("invalid certificate pem: no CERTIFICATE block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate pem: %v", err)
	}
	return &Certificate{
		PEM:  trimmed,
		X509: cert,
		Meta: metadataOf(cert),
	}, nil
}

func metadataOf(cert *x509.Certificate) Metadata {
	var values []string
	for _, atv := range cert.Subject.Names {
		if v, ok := atv.Value.(string); ok && strings.TrimSpace(v) != "" {
			values = append(values, strings.TrimSpace(v))
		}
	}

	meta := Metadata{
		FingerprintSHA256:   Fingerprint(cert.Raw),
		SerialNumberHex:     cert.SerialNumber.Text(16),
		IssuerCN:            firstAttr(cert.Issuer.Names, oidCommonName),
		SubjectCN:           firstAttr(cert.Subject.Names, oidCommonName),
		SubjectSerialNumber: firstAttr(cert.Subject.Names, oidSerialNumber),
		SubjectUID:          firstAttr(cert.Subject.Names, oidUserID),
		SubjectOU:           firstAttr(cert.Subject.Names, oidOrgUnit),
		SubjectO:            firstAttr(cert.Subject.Names, oidOrganization),
		NotBefore:           cert.NotBefore.UTC(),
		NotAfter:            cert.NotAfter.UTC(),
		PublicKeyType:       publicKeyType(cert.PublicKey),
	}
	if len(values) > 0 {
		meta.SubjectRDNValue = values[0]
		meta.SubjectIdentityValue = values[0]
	}
	for _, v := range values {
		parts := strings.Split(v, ",")
		if len(parts) >= 2 && strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != "" {
			meta.SubjectIdentityValue = v
			break
		}
	}
	return meta
}

func firstAttr(names []pkix.AttributeTypeAndValue, oid asn1.ObjectIdentifier) string {
	for _, atv := range names {
		if !atv.Type.Equal(oid) {
			continue
		}
		if v, ok := atv.Value.(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func publicKeyType(pub any) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RSAPublicKey"
	default:
		return fmt.Sprintf("%T", pub)
	}
}

// Fingerprint returns the SHA-256 of der as colon separated upper-case hex.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	raw := strings.ToUpper(hex.EncodeToString(sum[:]))
	var b strings.Builder
	for i := 0; i < len(raw); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(raw[i : i+2])
	}
	return b.String()
}

// RSAPublicKey returns the certificate key, which must be RSA.
func (c *Certificate) RSAPublicKey() (*rsa.PublicKey, error) {
	pub, ok := c.X509.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate public key is not RSA")
	}
	return pub, nil
}

// Identity returns the agent name and owner id asserted by the subject, for
// display. Explicit claims come first; the first recognisable subject value
// fills whatever is still missing.
func (c *Certificate) Identity() SubjectIdentity {
	id := c.claim()
	if id.OwnerID == "" {
		id.OwnerID = c.Meta.SubjectSerialNumber
	}
	if id.OwnerID == "" {
		id.OwnerID = c.Meta.SubjectUID
	}
	for _, candidate := range []string{c.Meta.SubjectIdentityValue, c.Meta.SubjectRDNValue} {
		if id.AgentName != "" && id.OwnerID != "" {
			break
		}
		parsed := ParseSubjectIdentity(candidate)
		if id.AgentName == "" {
			id.AgentName = parsed.AgentName
		}
		if id.OwnerID == "" {
			id.OwnerID = parsed.OwnerID
		}
	}
	return id
}

// AgentClaim returns the agent name the certificate is issued to, or "" when
// the subject makes no explicit claim. Only the CN and agent=... attributes
// count; organisation and other attributes never name an agent.
func (c *Certificate) AgentClaim() string {
	return c.claim().AgentName
}

func (c *Certificate) claim() SubjectIdentity {
	id := ParseSubjectIdentity(c.Meta.SubjectCN)
	if id.Empty() {
		id.AgentName = c.Meta.SubjectCN
	}
	for _, atv := range c.X509.Subject.Names {
		if id.AgentName != "" && id.OwnerID != "" {
			break
		}
		v, ok := atv.Value.(string)
		if !ok {
			continue
		}
		kv := parseKeyValues(strings.TrimSpace(v))
		if id.AgentName == "" {
			id.AgentName = kv.AgentName
		}
		if id.OwnerID == "" {
			id.OwnerID = kv.OwnerID
		}
	}
	return id
}

// Window describes where an instant falls relative to the validity window.
type Window int

const (
	WithinWindow Window = iota
	BeforeWindow
	AfterWindow
)

// CheckWindow places now relative to [NotBefore, NotAfter]. Both bounds are
// inclusive.
func (c *Certificate) CheckWindow(now time.Time) Window {
	switch {
	case now.Before(c.X509.NotBefore):
		return BeforeWindow
	case now.After(c.X509.NotAfter):
		return AfterWindow
	default:
		return WithinWindow
	}
}
