package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamerelay/internal/client"
)

var (
	cfg       *Config
	hubClient *client.Client
	logger    *slog.Logger
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "relayctl",
		Short: "CLI tool for the game hub API",
		Long: `relayctl is a CLI tool for interacting with a game hub.

Player commands (login, game, stream, status) talk to the external listener.
Operator commands (token, user, games) talk to the internal listener and need
no token.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			level := slog.LevelWarn
			var w io.Writer = io.Discard
			if cfg.Verbose {
				level = slog.LevelDebug
				w = os.Stderr
			}
			logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

			hubClient = client.New(cfg.ServerURL, cfg.Token, client.WithLogger(logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Hub external URL (env: RELAYCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.InternalURL, "internal", cfg.InternalURL, "Hub internal URL (env: RELAYCTL_INTERNAL)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "API token (env: RELAYCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: RELAYCTL_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newGameCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newGamesCmd())

	return rootCmd
}

// adminClient talks to the internal listener
func adminClient() *client.Client {
	return client.New(cfg.InternalURL, "", client.WithLogger(logger))
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		NewOutput(cfg.Output).PrintError(err)
		os.Exit(1)
	}
}
