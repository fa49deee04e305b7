package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ParsePublicKeyPEM parses a SubjectPublicKeyInfo or PKCS#1 RSA public key.
func ParsePublicKeyPEM(data string) (any, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, errors.New("empty public key")
	}
	block, _ := pem.Decode([]byte(trimmed))
	if block == nil {
		return nil, errors.New("invalid public key pem: no PEM block")
	}
	switch block.Type {
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid public key pem: %v", err)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid public key pem: %v", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("invalid public key pem: unexpected block %q", block.Type)
	}
}

// NormalizePublicKeyPEM re-encodes a public key as SubjectPublicKeyInfo PEM.
func NormalizePublicKeyPEM(data string) (string, error) {
	pub, err := ParsePublicKeyPEM(data)
	if err != nil {
		return "", err
	}
	return encodePublicKey(pub)
}

// PublicKeyFingerprint returns the SHA-256 fingerprint of the key's DER
// SubjectPublicKeyInfo encoding.
func PublicKeyFingerprint(data string) (string, error) {
	pub, err := ParsePublicKeyPEM(data)
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint public key: %v", err)
	}
	return Fingerprint(der), nil
}

// PublicKeyPEM returns the certificate's key as SubjectPublicKeyInfo PEM.
func (c *Certificate) PublicKeyPEM() (string, error) {
	s, err := encodePublicKey(c.X509.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to extract certificate public key: %v", err)
	}
	return s, nil
}

// MatchesPublicKey reports an error unless data encodes the certificate's key.
func (c *Certificate) MatchesPublicKey(data string) error {
	provided, err := ParsePublicKeyPEM(data)
	if err != nil {
		return err
	}
	providedRSA, ok1 := provided.(*rsa.PublicKey)
	certRSA, ok2 := c.X509.PublicKey.(*rsa.PublicKey)
	if !ok1 || !ok2 {
		return errors.New("public key type does not match certificate")
	}
	if !providedRSA.Equal(certRSA) {
		return errors.New("public key does not match certificate")
	}
	return nil
}

func encodePublicKey(pub any) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
