// Package custody holds agent private keys on behalf of the request signer.
//
// Implementations satisfy signing.KeyCustody: they sign bytes and return the
// current certificate, and never return private key material to callers.
package custody

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/xiaot623/trustbook/internal/signing"
)

// signRSA signs with key and wraps failures as backend errors.
func signRSA(key *rsa.PrivateKey, message []byte, alg signing.Algorithm) ([]byte, error) {
	sig, err := alg.SignRSA(rand.Reader, key, message)
	if err != nil {
		if errors.Is(err, signing.ErrUnsupportedAlgorithm) {
			return nil, fmt.Errorf("%w: %v", signing.ErrSigningBackend, err)
		}
		return nil, fmt.Errorf("%w: rsa sign: %v", signing.ErrSigningBackend, err)
	}
	return sig, nil
}

// ParsePrivateKeyPEM parses a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, not RSA", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}
