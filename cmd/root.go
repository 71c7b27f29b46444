package main

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/matchd/internal/config"
	"github.com/okian/matchd/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "matchd",
		Short:         "matchd - multi-scene matching recommendations",
		Long:          `matchd serves ranked recommendation lists for housing, dating, activity, business and social scenes and runs their batch maintenance jobs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				return os.Setenv(config.EnvConfig, configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (overrides "+config.EnvConfig+")")

	serve := newServeCmd()
	root.AddCommand(serve, newRunJobCmd(), newMigrateCmd())
	// Bare "matchd" runs the server.
	root.RunE = serve.RunE
	return root
}

// setup loads configuration and initializes logging for a command.
func setup(ctx context.Context) (*config.Config, error) {
	// Bootstrap logger so config errors are reported.
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		return nil, err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}
