package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamerelay/internal/config"
	"github.com/mcoot/gamerelay/internal/hub"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Game session hub",
		Long: `hub issues tokens, manages users and games, and places games on relay servers.

The external listener serves players; the internal listener serves operators
and should not be exposed. Settings come from flags, HUB_* environment
variables and an optional YAML file, in that order of precedence.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if err := config.BindFlags(v, flags); err != nil {
				return err
			}
			path, _ := flags.GetString("config")
			cfg, err := config.Load(v, path)
			if err != nil {
				return err
			}

			verbose, _ := flags.GetCount("verbose")
			quiet, _ := flags.GetCount("quiet")

			// Set up logging with JSON output
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: config.LogLevel(cfg.Verbosity + verbose - quiet),
			}))
			slog.SetDefault(logger)

			h, err := hub.New(cfg, logger)
			if err != nil {
				logger.Error("failed to start hub", slog.String("error", err.Error()))
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := h.Run(ctx); err != nil {
				logger.Error("hub stopped with error", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}
