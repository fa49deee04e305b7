package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/trustbook/internal/custody"
	"github.com/xiaot623/trustbook/internal/identity"
	"github.com/xiaot623/trustbook/internal/service"
	"github.com/xiaot623/trustbook/internal/signing"
)

func (a *app) keygenCommand() *cobra.Command {
	var (
		owner  string
		issuer string
		days   int
		bits   int
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair and self-signed identity certificate in the keystore",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AgentName == "" {
				return errors.New("--agent is required")
			}
			key, err := custody.GenerateRSAKey(bits)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			certPEM, err := custody.SelfSignedCertificate(key, custody.CertificateTemplate{
				AgentName: a.cfg.AgentName,
				OwnerID:   owner,
				IssuerCN:  issuer,
				NotBefore: now.Add(-5 * time.Minute),
				NotAfter:  now.AddDate(0, 0, days),
			})
			if err != nil {
				return err
			}
			keyPEM, err := custody.EncodePrivateKeyPEM(key)
			if err != nil {
				return err
			}
			ks, err := a.keystore()
			if err != nil {
				return err
			}
			if err := ks.Import(keyPEM, certPEM); err != nil {
				return err
			}
			cert, err := identity.ParseCertificatePEM(string(certPEM))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"keystore":           ks.Dir(),
				"fingerprint_sha256": cert.Meta.FingerprintSHA256,
				"not_before":         cert.Meta.NotBefore,
				"not_after":          cert.Meta.NotAfter,
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id embedded in the certificate subject")
	cmd.Flags().StringVar(&issuer, "issuer", "", "issuer common name (defaults to the agent name)")
	cmd.Flags().IntVar(&days, "days", 365, "certificate validity in days")
	cmd.Flags().IntVar(&bits, "bits", custody.DefaultKeyBits, "RSA key size")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var unbound bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the agent, binding the keystore certificate when present",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AgentName == "" {
				return errors.New("--agent is required")
			}
			var in service.IdentityInput
			if !unbound {
				certPEM, err := a.keystoreCertificate(cmd)
				if err != nil && !errors.Is(err, signing.ErrKeyUnavailable) {
					return err
				}
				in.CertificatePEM = string(certPEM)
			}
			c, err := a.client(false)
			if err != nil {
				return err
			}
			reg, err := c.Register(cmd.Context(), a.cfg.AgentName, in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().BoolVar(&unbound, "no-identity", false, "register without binding a certificate")
	return cmd
}

func (a *app) bindCommand() *cobra.Command {
	var (
		certFile string
		pubFile  string
	)
	cmd := &cobra.Command{
		Use:   "bind",
		Short: "Bind a certificate and/or public key to the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in service.IdentityInput
			if pubFile != "" {
				data, err := os.ReadFile(pubFile)
				if err != nil {
					return fmt.Errorf("read public key: %w", err)
				}
				in.PublicKeyPEM = string(data)
			}
			switch {
			case certFile != "":
				data, err := os.ReadFile(certFile)
				if err != nil {
					return fmt.Errorf("read certificate: %w", err)
				}
				in.CertificatePEM = string(data)
			case pubFile == "":
				data, err := a.keystoreCertificate(cmd)
				if err != nil {
					return err
				}
				in.CertificatePEM = string(data)
			}

			c, err := a.client(false)
			if err != nil {
				return err
			}
			profile, err := c.BindIdentity(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
	cmd.Flags().StringVar(&certFile, "cert", "", "certificate PEM file (defaults to the keystore certificate)")
	cmd.Flags().StringVar(&pubFile, "public-key", "", "public key PEM file")
	return cmd
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated agent and its identity status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(false)
			if err != nil {
				return err
			}
			profile, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
}

func (a *app) keystoreCertificate(cmd *cobra.Command) ([]byte, error) {
	ks, err := a.keystore()
	if err != nil {
		return nil, err
	}
	return ks.Certificate(cmd.Context())
}
