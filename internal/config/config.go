// Package config provides configuration for the trustbook server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variables used to configure the server.
const EnvPrefix = "TRUSTBOOK_"

// Config holds the server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Signature SignatureConfig `koanf:"signature"`
	Nonce     NonceConfig     `koanf:"nonce"`
	Redis     RedisConfig     `koanf:"redis"`
	Logging   LoggingConfig   `koanf:"logging"`
	AuditLog  AuditLogConfig  `koanf:"audit_log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Feed      FeedConfig      `koanf:"feed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies read for signature checks.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// DatabaseConfig holds the SQLite DSN.
type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

// SignatureConfig holds verification parameters.
type SignatureConfig struct {
	FreshnessWindow time.Duration `koanf:"freshness_window"`
	// Language selects badge labels ("en" or "zh").
	Language string `koanf:"language"`
}

// NonceConfig selects the anti-replay store.
type NonceConfig struct {
	Backend         string        `koanf:"backend"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// RedisConfig holds the redis connection used by the redis nonce backend.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	KeyPrefix    string        `koanf:"key_prefix"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// LoggingConfig holds application logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuditLogConfig holds the signature verification audit log settings.
type AuditLogConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// FeedConfig holds websocket feed settings.
type FeedConfig struct {
	Enabled      bool          `koanf:"enabled"`
	PingInterval time.Duration `koanf:"ping_interval"`
	PongWait     time.Duration `koanf:"pong_wait"`
	WriteWait    time.Duration `koanf:"write_wait"`
}

// Load reads the optional TOML file at configPath, then environment
// variables prefixed with EnvPrefix. A single underscore nests
// (TRUSTBOOK_SERVER_PORT -> server.port), a double underscore keeps a literal
// underscore (TRUSTBOOK_AUDIT__LOG_PATH -> audit_log.path).
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey(EnvPrefix)), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps PREFIX_A_B__C to a.b_c.
func envKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
		s = strings.ReplaceAll(s, "_", ".")
		return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
	}
}

// defaultConfig returns a Config struct with default configuration values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			DSN: "file:trustbook.db?cache=shared&mode=rwc",
		},
		Signature: SignatureConfig{
			FreshnessWindow: 5 * time.Minute,
			Language:        "en",
		},
		Nonce: NonceConfig{
			Backend:         "memory",
			CleanupInterval: time.Minute,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			KeyPrefix:    "trustbook:nonce:v1:",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		AuditLog: AuditLogConfig{
			Enabled:    true,
			Path:       "logs/signature_verify.log",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Feed: FeedConfig{
			Enabled:      true,
			PingInterval: 30 * time.Second,
			PongWait:     60 * time.Second,
			WriteWait:    10 * time.Second,
		},
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Signature.FreshnessWindow <= 0 {
		errs = append(errs, errors.New("signature.freshness_window must be positive"))
	}
	switch c.Signature.Language {
	case "en", "zh":
	default:
		errs = append(errs, fmt.Errorf("signature.language must be en or zh, got %q", c.Signature.Language))
	}
	switch c.Nonce.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis nonce backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("nonce.backend must be memory or redis, got %q", c.Nonce.Backend))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.AuditLog.Enabled && c.AuditLog.Path == "" {
		errs = append(errs, errors.New("audit_log.path is required when the audit log is enabled"))
	}
	if c.Feed.Enabled && c.Feed.PingInterval >= c.Feed.PongWait {
		errs = append(errs, errors.New("feed.ping_interval must be shorter than feed.pong_wait"))
	}
	return errors.Join(errs...)
}
