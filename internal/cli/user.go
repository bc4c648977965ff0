package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamerelay/internal/api/request"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User administration (internal listener)",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserGetCmd())
	cmd.AddCommand(newUserUpdateCmd())

	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var user, pass, email string
	var permissions []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" || pass == "" {
				return fmt.Errorf("--user and --pass are required")
			}

			req := request.CreateUserRequest{
				Username:    user,
				Password:    pass,
				Email:       email,
				Permissions: strings.Join(permissions, "/"),
			}
			result, err := adminClient().CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringSliceVar(&permissions, "permission", []string{"CREATE_GAME", "JOIN_GAME"}, "Permissions granted to the user's login tokens")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := adminClient().GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}
}

func newUserUpdateCmd() *cobra.Command {
	var pass, email string
	var permissions []string
	var enabled, verified bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user; only the flags given are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req request.UpdateUserRequest
			flags := cmd.Flags()
			if flags.Changed("pass") {
				req.Password = &pass
			}
			if flags.Changed("email") {
				req.Email = &email
			}
			if flags.Changed("permission") {
				req.Permissions = strings.Join(permissions, "/")
			}
			if flags.Changed("enabled") {
				req.Enabled = &enabled
			}
			if flags.Changed("verified") {
				req.Verified = &verified
			}

			result, err := adminClient().UpdateUser(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&pass, "pass", "", "New password")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Replace the user's permissions")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable the account")
	cmd.Flags().BoolVar(&verified, "verified", false, "Mark the account verified")

	return cmd
}

func newGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List all games (internal listener)",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := adminClient().ListGames(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
