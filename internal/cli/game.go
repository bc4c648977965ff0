package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameJoinCmd())
	cmd.AddCommand(newGameStartCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameLeaveCmd())
	cmd.AddCommand(newGameDeleteCmd())

	return cmd
}

func newGameCreateCmd() *cobra.Command {
	var alias string
	var options []string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a game with you as master",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(options)
			if err != nil {
				return err
			}

			result, err := hubClient.CreateGame(cmd.Context(), args[0], alias, opts)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Your alias in the game")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Game option as key=value, repeatable (e.g. max_players=4)")

	return cmd
}

// parseOptions turns key=value pairs into an options map. Values stay strings
// and are coerced by the hub.
func parseOptions(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	opts := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", pair)
		}
		opts[key] = value
	}
	return opts, nil
}

func newGameJoinCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "join <id>",
		Short: "Join a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := hubClient.JoinGame(cmd.Context(), args[0], alias)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Your alias in the game")

	return cmd
}

func newGameStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start a game (master only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := hubClient.AttachGame(cmd.Context(), args[0]); err != nil {
				return err
			}
			result, err := hubClient.StartGame(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get game details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := hubClient.GetGame(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(*result)
			return nil
		},
	}
}

func newGameLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <id>",
		Short: "Leave a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := hubClient.AttachGame(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := hubClient.LeaveGame(cmd.Context()); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Left game")
			return nil
		},
	}
}

func newGameDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a game (master only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := hubClient.AttachGame(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := hubClient.DeleteGame(cmd.Context()); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Game deleted")
			return nil
		},
	}
}
