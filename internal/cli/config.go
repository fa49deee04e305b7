package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/xiaot623/trustbook/internal/signing"
)

// EnvPrefix is the prefix for environment variables read by mbctl.
const EnvPrefix = "MBCTL_"

// Config holds mbctl settings.
type Config struct {
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	AgentName   string        `koanf:"agent_name"`
	KeystoreDir string        `koanf:"keystore_dir"`
	Service     string        `koanf:"service"`
	Algorithm   string        `koanf:"algorithm"`
	Timeout     time.Duration `koanf:"timeout"`
}

// LoadConfig reads the optional TOML file at path, then MBCTL_* variables.
// MBCTL_BASE_URL maps to base_url; keys are flat so underscores are kept.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	envToKey := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envToKey), nil); err != nil {
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

func defaultConfig() *Config {
	dir := ".mbctl/keys"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".mbctl", "keys")
	}
	return &Config{
		BaseURL:     "http://localhost:8080",
		KeystoreDir: dir,
		Service:     "default",
		Algorithm:   string(signing.DefaultAlgorithm),
		Timeout:     30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if _, err := signing.ParseAlgorithm(c.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	return errors.Join(errs...)
}
