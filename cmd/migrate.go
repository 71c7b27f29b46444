package main

import (
	"fmt"

	"github.com/okian/matchd/internal/config"
	"github.com/okian/matchd/pkg/logger"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQL tables used by the postgres and sqlite stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			if cfg.StoreDriver == config.StoreMemory {
				return fmt.Errorf("%w: migrate needs store_driver postgres or sqlite", config.ErrInvalidConfig)
			}
			cfg.StoreMigrate = true
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			logger.Named("main").Info(ctx, "schema ready", logger.String("driver", cfg.StoreDriver))
			return nil
		},
	}
}
