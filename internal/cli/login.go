package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with an existing account and save the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pass == "" {
				pass = os.Getenv("RELAYCTL_PASSWORD")
			}
			if user == "" || pass == "" {
				return fmt.Errorf("--user and --pass (or RELAYCTL_PASSWORD) are required")
			}

			result, err := hubClient.Login(cmd.Context(), user, pass)
			if err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (env: RELAYCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
