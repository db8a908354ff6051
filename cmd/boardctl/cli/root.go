package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garrettallen/cardboards/config"
	"github.com/garrettallen/cardboards/internal/logging"
)

type contextKey string

const (
	configKey contextKey = "config"
	loggerKey contextKey = "logger"
)

// NewRootCommand creates the boardctl root command. Configuration is loaded
// before any subcommand runs.
func NewRootCommand(version string) *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Inspect and administer card boards",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Stderr: true})
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, loggerKey, logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	return cmd
}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey).(*config.Config)
	return cfg
}

func loggerFrom(cmd *cobra.Command) *zap.Logger {
	if logger, ok := cmd.Context().Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}
