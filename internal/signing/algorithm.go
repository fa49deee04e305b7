package signing

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Algorithm identifies the signature scheme carried in X-MB-Signature-Alg.
type Algorithm string

const (
	AlgRSAPKCS1v15SHA256 Algorithm = "rsa-v1_5-sha256"
	AlgRSAPSSSHA256      Algorithm = "rsa-pss-sha256"

	// DefaultAlgorithm is assumed when a signed request omits the algorithm header.
	DefaultAlgorithm = AlgRSAPKCS1v15SHA256
)

// ErrUnsupportedAlgorithm is returned for identifiers outside the known set.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// ParseAlgorithm maps an identifier (or one of its aliases) to an Algorithm.
// An empty identifier yields DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultAlgorithm, nil
	case "rsa-sha256", "rsa-v1_5-sha256", "rsassa-pkcs1v15-sha256":
		return AlgRSAPKCS1v15SHA256, nil
	case "rsa-pss-sha256", "rsassa-pss-sha256":
		return AlgRSAPSSSHA256, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, s)
	}
}

// SignRSA signs message with key. Only key custody implementations call this.
func (a Algorithm) SignRSA(random io.Reader, key *rsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	switch a {
	case AlgRSAPKCS1v15SHA256:
		return rsa.SignPKCS1v15(random, key, crypto.SHA256, digest[:])
	case AlgRSAPSSSHA256:
		return rsa.SignPSS(random, key, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
}

// VerifyRSA checks sig over message with pub.
func (a Algorithm) VerifyRSA(pub *rsa.PublicKey, message, sig []byte) error {
	digest := sha256.Sum256(message)
	switch a {
	case AlgRSAPKCS1v15SHA256:
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
	case AlgRSAPSSSHA256:
		return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
}
