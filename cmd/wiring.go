package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/matchd/internal/adapters/cache"
	"github.com/okian/matchd/internal/adapters/http/api"
	"github.com/okian/matchd/internal/adapters/http/swagger"
	"github.com/okian/matchd/internal/adapters/repository"
	service "github.com/okian/matchd/internal/app"
	"github.com/okian/matchd/internal/config"
	"github.com/okian/matchd/internal/domain/scene"
	"github.com/okian/matchd/pkg/logger"
)

// stack holds the service and whatever connections it owns.
type stack struct {
	svc     *service.Service
	closers []func() error
}

// Close releases store and cache connections in reverse order.
func (r *stack) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	scenes, err := cfg.Scenes()
	if err != nil {
		return nil, err
	}
	catalog := scene.Default()
	st := &stack{}

	opts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithCatalog(catalog),
		service.WithCacheTTL(cfg.CacheTTL),
		service.WithBatchCacheTTL(cfg.BatchCacheTTL),
		service.WithCandidatePoolLimit(cfg.CandidatePoolLimit),
		service.WithResultLimits(cfg.DefaultMaxResults, cfg.MaxResultsLimit),
		service.WithBatchScenes(scenes...),
		service.WithBatchSize(cfg.BatchSize),
		service.WithRegenerationWorkers(cfg.RegenerationWorkers),
		service.WithSchedule(cfg.SchedulerTick, cfg.RegenerationInterval, cfg.CleanupInterval, cfg.StatisticsInterval),
		service.WithRetention(cfg.ActionRetention, cfg.MatchStaleness),
	}

	storeOpts, err := buildStores(ctx, cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	opts = append(opts, storeOpts...)

	switch cfg.CacheBackend {
	case config.CacheRedis:
		rc, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB,
			cache.WithKeyPrefix(cfg.RedisKeyPrefix),
			cache.WithScenes(catalog.Scenes()...),
		)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.closers = append(st.closers, rc.Close)
		opts = append(opts, service.WithCache(rc))
	default:
		opts = append(opts, service.WithCache(cache.NewSharded(cache.WithShardCount(cfg.CacheShards))))
	}

	st.svc = service.New(opts...)
	return st, nil
}

// buildStores opens the SQL store and puts a breaker in front of each
// collaborator. The memory driver leaves the service on its own store.
func buildStores(ctx context.Context, cfg *config.Config, st *stack) ([]service.Option, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Named("wiring").Warn(ctx, "using the in-memory store; profiles are not persisted")
		return nil, nil
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, store.Close)

	settings := repository.BreakerSettings{
		FailureThreshold: uint32(cfg.BreakerFailureThreshold), //nolint:gosec // validated >= 1
		OpenTimeout:      cfg.BreakerOpenTimeout,
		Logger:           logger.Named("breaker"),
	}
	return []service.Option{
		service.WithProfileStore(repository.GuardProfileStore(store, settings)),
		service.WithActionLog(repository.GuardActionLog(store, settings)),
		service.WithMatchStore(repository.GuardMatchStore(store, settings)),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.SQLStore, error) {
	store, err := repository.OpenSQL(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	if cfg.StoreMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func buildRouter(svc *service.Service) http.Handler {
	r := chi.NewRouter()
	api.NewServer(svc, api.WithLogger(logger.Named("api"))).Register(r)
	swagger.Register(r)
	return r
}

func storeLabel(cfg *config.Config) string {
	if cfg.StoreDriver == config.StoreMemory {
		return cfg.StoreDriver
	}
	return fmt.Sprintf("%s (migrate=%t)", cfg.StoreDriver, cfg.StoreMigrate)
}
