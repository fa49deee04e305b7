package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Signature.FreshnessWindow)
	assert.Equal(t, "memory", cfg.Nonce.Backend)
	assert.Equal(t, "logs/signature_verify.log", cfg.AuditLog.Path)
	assert.Equal(t, 5, cfg.AuditLog.MaxSizeMB)
	assert.Equal(t, 3, cfg.AuditLog.MaxBackups)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustbook.toml")
	content := `
[server]
port = 9090

[signature]
freshness_window = "2m"
language = "zh"

[audit_log]
path = "/tmp/audit.log"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TRUSTBOOK_SERVER_PORT", "9191")
	t.Setenv("TRUSTBOOK_NONCE_BACKEND", "redis")
	t.Setenv("TRUSTBOOK_REDIS_ADDR", "redis:6379")
	t.Setenv("TRUSTBOOK_AUDIT__LOG_MAX__BACKUPS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, 2*time.Minute, cfg.Signature.FreshnessWindow)
	assert.Equal(t, "zh", cfg.Signature.Language)
	assert.Equal(t, "/tmp/audit.log", cfg.AuditLog.Path)
	assert.Equal(t, 7, cfg.AuditLog.MaxBackups)
	assert.Equal(t, "redis", cfg.Nonce.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("TRUSTBOOK_NONCE_BACKEND", "etcd")
	t.Setenv("TRUSTBOOK_SIGNATURE_LANGUAGE", "fr")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce.backend")
	assert.Contains(t, err.Error(), "signature.language")
}

func TestEnvKey(t *testing.T) {
	f := envKey(EnvPrefix)
	assert.Equal(t, "server.port", f("TRUSTBOOK_SERVER_PORT"))
	assert.Equal(t, "audit_log.max_size_mb", f("TRUSTBOOK_AUDIT__LOG_MAX__SIZE__MB"))
}
