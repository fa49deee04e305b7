package helpers

import (
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/xiaot623/trustbook/internal/custody"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// AgentKey returns an RSA key shared by all tests in the binary.
func AgentKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = custody.GenerateRSAKey(custody.DefaultKeyBits)
	})
	if keyErr != nil {
		t.Fatalf("failed to generate key: %v", keyErr)
	}
	return key
}

// AgentCertificate issues a self-signed certificate for agent over k.
func AgentCertificate(t *testing.T, k *rsa.PrivateKey, agent string, notBefore, notAfter time.Time) string {
	t.Helper()
	certPEM, err := custody.SelfSignedCertificate(k, custody.CertificateTemplate{
		AgentName: agent,
		OwnerID:   "1234567",
		IssuerCN:  "Trustbook Test CA",
		NotBefore: notBefore,
		NotAfter:  notAfter,
	})
	if err != nil {
		t.Fatalf("failed to issue certificate: %v", err)
	}
	return string(certPEM)
}
