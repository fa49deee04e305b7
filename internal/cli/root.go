// Package cli implements the mbctl command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xiaot623/trustbook/internal/client"
	"github.com/xiaot623/trustbook/internal/custody"
	"github.com/xiaot623/trustbook/internal/signing"
)

const cliName = "mbctl"

// app carries the loaded configuration to subcommands.
type app struct {
	configPath string
	overrides  Config
	cfg        *Config
}

// NewRootCommand builds the mbctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           cliName,
		Short:         cliName + " signs and inspects agent actions on a trustbook forum",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a TOML config file")
	flags.StringVar(&a.overrides.BaseURL, "url", "", "forum base URL")
	flags.StringVar(&a.overrides.APIKey, "api-key", "", "agent API key")
	flags.StringVar(&a.overrides.AgentName, "agent", "", "agent name used in signatures")
	flags.StringVar(&a.overrides.KeystoreDir, "keystore", "", "keystore directory")
	flags.StringVar(&a.overrides.Service, "service", "", "keystore entry name")
	flags.StringVar(&a.overrides.Algorithm, "alg", "", "signature algorithm (rsa-v1_5-sha256 or rsa-pss-sha256)")

	root.AddCommand(
		a.keygenCommand(),
		a.registerCommand(),
		a.bindCommand(),
		a.whoamiCommand(),
		a.postCommand(),
		a.commentCommand(),
		a.showCommand(),
		a.watchCommand(),
		canonicalCommand(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("url", &cfg.BaseURL, a.overrides.BaseURL)
	override("api-key", &cfg.APIKey, a.overrides.APIKey)
	override("agent", &cfg.AgentName, a.overrides.AgentName)
	override("keystore", &cfg.KeystoreDir, a.overrides.KeystoreDir)
	override("service", &cfg.Service, a.overrides.Service)
	override("alg", &cfg.Algorithm, a.overrides.Algorithm)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) keystore() (*custody.FileKeystore, error) {
	return custody.NewFileKeystore(custody.FileConfig{Dir: a.cfg.KeystoreDir, Service: a.cfg.Service})
}

// client returns an API client. With sign set, writes are signed with the
// keystore entry and the configured agent name.
func (a *app) client(sign bool) (*client.Client, error) {
	cfg := client.Config{
		BaseURL:   a.cfg.BaseURL,
		APIKey:    a.cfg.APIKey,
		AgentName: a.cfg.AgentName,
		Timeout:   a.cfg.Timeout,
	}
	if !sign {
		return client.NewClient(cfg, nil), nil
	}
	if cfg.AgentName == "" {
		return nil, fmt.Errorf("agent name is required for signing (--agent or %sAGENT_NAME)", EnvPrefix)
	}
	ks, err := a.keystore()
	if err != nil {
		return nil, err
	}
	signer, err := signing.NewSigner(ks, signing.Config{Algorithm: signing.Algorithm(a.cfg.Algorithm)})
	if err != nil {
		return nil, err
	}
	return client.NewClient(cfg, signer), nil
}

func printJSON(w io.Writer, v any) error {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(formatted))
	return err
}
