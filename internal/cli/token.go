package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamerelay/internal/api/request"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token administration (internal listener)",
	}

	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenNoteCmd())
	cmd.AddCommand(newTokenRevokeCmd())

	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	var lifespan time.Duration
	var permissions []string
	var note string
	var temporary, save bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lifespan <= 0 {
				return fmt.Errorf("--lifespan must be positive")
			}

			req := request.CreateTokenRequest{
				Lifespan:    lifespan.Seconds(),
				Permissions: strings.Join(permissions, "/"),
				Note:        note,
				Temporary:   temporary,
			}
			result, err := adminClient().CreateToken(cmd.Context(), req)
			if err != nil {
				return err
			}

			if save {
				if err := cfg.SaveToken(result.Token); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&lifespan, "lifespan", 24*time.Hour, "How long the token stays valid")
	cmd.Flags().StringSliceVar(&permissions, "permission", []string{"CREATE_GAME", "JOIN_GAME"}, "Permissions to grant")
	cmd.Flags().StringVar(&note, "note", "", "Free text note")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "Keep the token in memory only")
	cmd.Flags().BoolVar(&save, "save", false, "Save the token to the token file")

	return cmd
}

func newTokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := adminClient().ListTokens(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newTokenNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <token> <note>",
		Short: "Change a token's note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := adminClient().UpdateTokenNote(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}
}

func newTokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Invalidate a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := adminClient().RevokeToken(cmd.Context(), args[0]); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Token revoked")
			return nil
		},
	}
}
