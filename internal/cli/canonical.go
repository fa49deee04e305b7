package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaot623/trustbook/internal/signing"
)

func canonicalCommand() *cobra.Command {
	var (
		ts       int64
		nonce    string
		agent    string
		method   string
		path     string
		body     string
		bodyFile string
	)
	cmd := &cobra.Command{
		Use:   "canonical",
		Short: "Print the canonical message for the given request fields",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := []byte(body)
			if bodyFile != "" {
				if body != "" {
					return errors.New("--body and --body-file are mutually exclusive")
				}
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body: %w", err)
				}
				payload = data
			}
			msg, err := signing.BuildMessage(ts, nonce, agent, method, path, payload)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(msg)
			return err
		},
	}
	cmd.Flags().Int64Var(&ts, "ts", 0, "unix timestamp in seconds")
	cmd.Flags().StringVar(&nonce, "nonce", "", "nonce")
	cmd.Flags().StringVar(&agent, "agent-name", "", "agent name")
	cmd.Flags().StringVar(&method, "method", "POST", "HTTP method")
	cmd.Flags().StringVar(&path, "path", "", "request path")
	cmd.Flags().StringVar(&body, "body", "", "request body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the request body from a file")
	return cmd
}
