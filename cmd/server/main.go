package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akovalev/netchat-server/internal/app"
	"github.com/akovalev/netchat-server/internal/config"
	"github.com/akovalev/netchat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:          "netchat-server [port]",
		Short:        "Concurrent chat server with rooms, whispers, and file transfers",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrapLog := log.New("info")

			cfg, path, err := config.Load(bootstrapLog, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)
			if len(args) == 1 {
				cfg.Addr = ":" + args[0]
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting netchat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize")
				return err
			}

			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "TCP listen address")
	cmd.Flags().StringVar(&overrides.AdminAddr, "admin-addr", "", "admin HTTP listen address")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&overrides.DatabasePath, "db", "", "path to the transfer audit database")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	return cmd
}
