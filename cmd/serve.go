package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/matchd/internal/config"
	"github.com/okian/matchd/internal/supervisor"
	"github.com/okian/matchd/pkg/logger"
	"github.com/spf13/cobra"
)

// HTTP server timeouts.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 15 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the batch scheduler",
		Long:  `Serve recommendations over HTTP and run the regeneration, cleanup and statistics jobs on their intervals until SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("main")

	st, err := buildStack(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error(context.Background(), "failed to close connections", logger.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildRouter(st.svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	tree := supervisor.NewTree(logger.Slog(), supervisor.TreeConfig{ShutdownTimeout: cfg.ShutdownTimeout})
	tree.AddCoreService(supervisor.NewLifecycleService("recommendation-service", st.svc))
	tree.AddCoreService(supervisor.NewSystemMetricsService(systemMetricsInterval))
	tree.AddAPIService(supervisor.NewHTTPService(srv, cfg.ShutdownTimeout))

	log.Info(ctx, "starting matchd",
		logger.String("addr", cfg.Addr),
		logger.String("store", storeLabel(cfg)),
		logger.String("cache", cfg.CacheBackend),
	)
	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		log.Warn(context.Background(), "services did not stop in time", logger.Any("services", report))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error(context.Background(), "supervisor stopped", logger.Error(err))
		return err
	}
	log.Info(context.Background(), "matchd stopped")
	return nil
}
