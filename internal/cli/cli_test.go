package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/nonce"
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/registry"
	"github.com/xiaot623/trustbook/internal/service"
	"github.com/xiaot623/trustbook/internal/signing"
	transport "github.com/xiaot623/trustbook/internal/transport/http"
	"github.com/xiaot623/trustbook/internal/verify"
	"github.com/xiaot623/trustbook/tests/helpers"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCanonicalCommand(t *testing.T) {
	body := `{"title":"Hello","content":"Hi"}`
	out, err := run(t, "canonical",
		"--ts", "1700000000",
		"--nonce", "n1",
		"--agent-name", "agent-a",
		"--method", "post",
		"--path", "/api/v1/projects/p1/posts",
		"--body", body)
	require.NoError(t, err)

	want := "MB2\n1700000000\nn1\nagent-a\nPOST\n/api/v1/projects/p1/posts\n" + signing.BodyDigest([]byte(body)) + "\n"
	assert.Equal(t, want, out)
}

func TestCanonicalCommandRejectsMissingFields(t *testing.T) {
	_, err := run(t, "canonical", "--ts", "1700000000", "--agent-name", "agent-a", "--path", "/p")
	assert.ErrorIs(t, err, signing.ErrMalformedSigningInput)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mbctl.toml")
	require.NoError(t, os.WriteFile(path, []byte("base_url = \"http://forum:9000\"\nservice = \"work\"\n"), 0o600))
	t.Setenv("MBCTL_AGENT_NAME", "agent-a")
	t.Setenv("MBCTL_TIMEOUT", "5s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://forum:9000", cfg.BaseURL)
	assert.Equal(t, "work", cfg.Service)
	assert.Equal(t, "agent-a", cfg.AgentName)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, string(signing.DefaultAlgorithm), cfg.Algorithm)

	t.Setenv("MBCTL_ALGORITHM", "ed25519")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestSignedWorkflow(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	nonces := nonce.NewMemoryStore(0)
	t.Cleanup(func() { _ = nonces.Close() })
	svc := service.New(service.Dependencies{
		Store:    db,
		Registry: registry.New(db),
		Verifier: verify.New(verify.Config{}),
		Renderer: presentation.NewRenderer(presentation.LangEnglish, nil),
		Nonces:   nonces,
	})
	ts := httptest.NewServer(transport.NewServer(svc, transport.Options{}))
	t.Cleanup(ts.Close)

	common := []string{"--url", ts.URL, "--keystore", t.TempDir(), "--agent", "agent-a", "--service", "agent-a"}

	out, err := run(t, append([]string{"keygen", "--owner", "1234567", "--days", "30"}, common...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "fingerprint_sha256")

	out, err = run(t, append([]string{"register"}, common...)...)
	require.NoError(t, err, out)
	var reg service.Registration
	require.NoError(t, json.Unmarshal([]byte(out), &reg))
	assert.Equal(t, domain.IdentityStatusBound, reg.Identity.Status)
	require.NotEmpty(t, reg.APIKey)

	withKey := append(common, "--api-key", reg.APIKey)
	out, err = run(t, append([]string{"post", "--project", "p1", "--title", "Hello", "--content", "Hi"}, withKey...)...)
	require.NoError(t, err, out)
	var post service.PostView
	require.NoError(t, json.Unmarshal([]byte(out), &post))
	assert.Equal(t, domain.SignatureStatusVerified, post.Signature.Status)

	out, err = run(t, append([]string{"comment", "--post", post.PostID, "--content", "plain", "--unsigned"}, withKey...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"status": "unsigned"`)

	out, err = run(t, append([]string{"show", "--post", post.PostID}, withKey...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"status": "verified"`)

	out, err = run(t, append([]string{"post", "--edit", post.PostID, "--content", "Hi there"}, withKey...)...)
	require.NoError(t, err, out)
	var edited service.PostView
	require.NoError(t, json.Unmarshal([]byte(out), &edited))
	assert.Equal(t, "Hello", edited.Title, "unchanged fields are carried over")
	assert.Equal(t, "Hi there", edited.Content)
	assert.Equal(t, domain.SignatureStatusVerified, edited.Signature.Status)

	out, err = run(t, append([]string{"whoami"}, withKey...)...)
	require.NoError(t, err, out)
	var me service.AgentProfile
	require.NoError(t, json.Unmarshal([]byte(out), &me))
	assert.Equal(t, domain.IdentityStatusVerified, me.Identity.Status)
}
