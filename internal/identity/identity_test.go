package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testKey
}

func certPEM(t *testing.T, subject pkix.Name, notBefore, notAfter time.Time) string {
	t.Helper()
	key := rsaKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(0x1f2e),
		Subject:      subject,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	issuer := &x509.Certificate{Subject: pkix.Name{CommonName: "Forum CA"}}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestParseCertificateMetadata(t *testing.T) {
	notBefore := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cert, err := ParseCertificatePEM("\n" + certPEM(t, pkix.Name{CommonName: "agent-a,1234567", Organization: []string{"Acme"}}, notBefore, notAfter))
	require.NoError(t, err)

	assert.Equal(t, "1f2e", cert.Meta.SerialNumberHex)
	assert.Equal(t, "Forum CA", cert.Meta.IssuerCN)
	assert.Equal(t, "agent-a,1234567", cert.Meta.SubjectCN)
	assert.Equal(t, "Acme", cert.Meta.SubjectO)
	assert.Equal(t, "RSAPublicKey", cert.Meta.PublicKeyType)
	assert.Equal(t, notBefore, cert.Meta.NotBefore)
	assert.Equal(t, notAfter, cert.Meta.NotAfter)
	assert.Len(t, strings.Split(cert.Meta.FingerprintSHA256, ":"), 32)
	assert.Equal(t, strings.ToUpper(cert.Meta.FingerprintSHA256), cert.Meta.FingerprintSHA256)
	assert.Equal(t, SubjectIdentity{AgentName: "agent-a", OwnerID: "1234567"}, cert.Identity())
	assert.False(t, strings.HasPrefix(cert.PEM, "\n"))
}

func TestParseCertificateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "junk", "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----"} {
		_, err := ParseCertificatePEM(in)
		assert.Error(t, err, in)
	}
}

func TestCheckWindowIsInclusive(t *testing.T) {
	notBefore := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	notAfter := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cert, err := ParseCertificatePEM(certPEM(t, pkix.Name{CommonName: "agent-a"}, notBefore, notAfter))
	require.NoError(t, err)

	assert.Equal(t, BeforeWindow, cert.CheckWindow(notBefore.Add(-time.Second)))
	assert.Equal(t, WithinWindow, cert.CheckWindow(notBefore))
	assert.Equal(t, WithinWindow, cert.CheckWindow(notAfter))
	assert.Equal(t, AfterWindow, cert.CheckWindow(notAfter.Add(time.Second)))
}

func TestIdentityFallbacks(t *testing.T) {
	now := time.Now()
	cert, err := ParseCertificatePEM(certPEM(t, pkix.Name{
		CommonName: "agent-b",
		ExtraNames: []pkix.AttributeTypeAndValue{{Type: oidUserID, Value: "u-77"}},
	}, now, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "u-77", cert.Meta.SubjectUID)
	assert.Equal(t, SubjectIdentity{AgentName: "agent-b", OwnerID: "u-77"}, cert.Identity())
}

func TestAgentClaimIgnoresOrganization(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		subject pkix.Name
		claim   string
		display SubjectIdentity
	}{
		{
			name:    "organization before cn",
			subject: pkix.Name{Organization: []string{"Acme Corp"}, CommonName: "agent-a"},
			claim:   "agent-a",
			display: SubjectIdentity{AgentName: "agent-a"},
		},
		{
			name:    "organization with comma",
			subject: pkix.Name{Organization: []string{"Acme, Inc."}, CommonName: "agent-a", SerialNumber: "1234567"},
			claim:   "agent-a",
			display: SubjectIdentity{AgentName: "agent-a", OwnerID: "1234567"},
		},
		{
			name: "explicit attribute",
			subject: pkix.Name{
				Organization: []string{"Acme Corp"},
				ExtraNames:   []pkix.AttributeTypeAndValue{{Type: oidUserID, Value: "agent=agent-c;owner=42"}},
			},
			claim:   "agent-c",
			display: SubjectIdentity{AgentName: "agent-c", OwnerID: "42"},
		},
		{
			name:    "organization only",
			subject: pkix.Name{Organization: []string{"Acme Corp"}},
			claim:   "",
			display: SubjectIdentity{AgentName: "Acme Corp"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cert, err := ParseCertificatePEM(certPEM(t, tc.subject, now, now.Add(time.Hour)))
			require.NoError(t, err)
			assert.Equal(t, tc.claim, cert.AgentClaim())
			assert.Equal(t, tc.display, cert.Identity())
		})
	}
}

func TestParseSubjectIdentity(t *testing.T) {
	cases := []struct {
		in   string
		want SubjectIdentity
	}{
		{"agent-a,1234567", SubjectIdentity{AgentName: "agent-a", OwnerID: "1234567"}},
		{"agent-a | 1234567", SubjectIdentity{AgentName: "agent-a", OwnerID: "1234567"}},
		{"agent=agent-a;owner=42", SubjectIdentity{AgentName: "agent-a", OwnerID: "42"}},
		{"agent:agent-a|owner_id:42", SubjectIdentity{AgentName: "agent-a", OwnerID: "42"}},
		{"name=agent-a", SubjectIdentity{AgentName: "agent-a"}},
		{"agent-a", SubjectIdentity{AgentName: "agent-a"}},
		{"123456", SubjectIdentity{OwnerID: "123456"}},
		{"123", SubjectIdentity{AgentName: "123"}},
		{"***", SubjectIdentity{}},
		{"12**34", SubjectIdentity{}},
		{"CN", SubjectIdentity{}},
		{"US", SubjectIdentity{}},
		{"", SubjectIdentity{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseSubjectIdentity(tc.in), tc.in)
	}
}

func TestPublicKeyHelpers(t *testing.T) {
	key := rsaKey(t)
	now := time.Now()
	cert, err := ParseCertificatePEM(certPEM(t, pkix.Name{CommonName: "agent-a"}, now, now.Add(time.Hour)))
	require.NoError(t, err)

	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)}))
	normalized, err := NormalizePublicKeyPEM(pkcs1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(normalized, "-----BEGIN PUBLIC KEY-----"))

	fromCert, err := cert.PublicKeyPEM()
	require.NoError(t, err)
	assert.Equal(t, fromCert, normalized)

	fp1, err := PublicKeyFingerprint(pkcs1)
	require.NoError(t, err)
	fp2, err := PublicKeyFingerprint(normalized)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	assert.NoError(t, cert.MatchesPublicKey(pkcs1))

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherDER, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	require.NoError(t, err)
	otherPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: otherDER}))
	assert.EqualError(t, cert.MatchesPublicKey(otherPEM), "public key does not match certificate")

	_, err = ParsePublicKeyPEM("junk")
	assert.Error(t, err)
	_, err = ParsePublicKeyPEM(cert.PEM)
	assert.Error(t, err)
}
