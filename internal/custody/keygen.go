package custody

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultKeyBits is the RSA modulus size used by GenerateRSAKey when bits is 0.
const DefaultKeyBits = 2048

// GenerateRSAKey creates a new RSA private key.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	if bits < 2048 {
		return nil, fmt.Errorf("rsa key size %d is below 2048", bits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// CertificateTemplate describes an agent identity certificate.
type CertificateTemplate struct {
	AgentName    string
	OwnerID      string
	Organization string
	// IssuerCN names a self-signed issuer. Ignored when a parent is given.
	IssuerCN  string
	NotBefore time.Time
	NotAfter  time.Time
	// SerialNumber is random when nil.
	SerialNumber *big.Int
}

// IssueCertificate signs a certificate for pub. With a nil parent the
// certificate is self-signed by parentKey.
func IssueCertificate(pub *rsa.PublicKey, tmpl CertificateTemplate, parent *x509.Certificate, parentKey *rsa.PrivateKey) ([]byte, error) {
	if tmpl.AgentName == "" {
		return nil, errors.New("agent name is required")
	}
	if parentKey == nil {
		return nil, errors.New("issuer key is required")
	}
	if !tmpl.NotAfter.After(tmpl.NotBefore) {
		return nil, errors.New("not_after must be after not_before")
	}

	serial := tmpl.SerialNumber
	if serial == nil {
		var err error
		serial, err = rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
		if err != nil {
			return nil, fmt.Errorf("generate serial: %w", err)
		}
	}

	subject := pkix.Name{
		CommonName:   tmpl.AgentName,
		SerialNumber: tmpl.OwnerID,
	}
	if tmpl.Organization != "" {
		subject.Organization = []string{tmpl.Organization}
	}
	cert := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             tmpl.NotBefore.UTC(),
		NotAfter:              tmpl.NotAfter.UTC(),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	issuer := parent
	if issuer == nil {
		issuerCN := tmpl.IssuerCN
		if issuerCN == "" {
			issuerCN = tmpl.AgentName
		}
		// x509.CreateCertificate takes the issuer name from the parent's subject.
		issuer = &x509.Certificate{Subject: pkix.Name{CommonName: issuerCN}}
	}

	der, err := x509.CreateCertificate(rand.Reader, cert, issuer, pub, parentKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

// SelfSignedCertificate issues a certificate for key signed by key itself.
func SelfSignedCertificate(key *rsa.PrivateKey, tmpl CertificateTemplate) ([]byte, error) {
	return IssueCertificate(&key.PublicKey, tmpl, nil, key)
}

// EncodePrivateKeyPEM renders key as PKCS#8 PEM for writing to a keystore.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodePublicKeyPEM renders pub as SubjectPublicKeyInfo PEM.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
