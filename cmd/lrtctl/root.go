package main

import (
	"context"

	"github.com/spf13/cobra"

	"landrace-threat/internal/app"
	"landrace-threat/internal/config"
	"landrace-threat/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "lrtctl",
		Short:         "Landrace threat assessment maintenance CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(logger.Config{
				Level:  logLevel,
				Format: "text",
				Output: cmd.ErrOrStderr(),
			})
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		migrateCommand(),
		reconcileCommand(),
		jobCommand(),
		scoreCommand(),
		tokenCommand(),
	)

	return rootCmd
}

// loadApp loads the configuration from the environment and wires the
// application against it
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
