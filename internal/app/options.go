package service

import (
	"time"

	"github.com/okian/matchd/internal/adapters/cache"
	"github.com/okian/matchd/internal/adapters/repository"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/scene"
	"github.com/okian/matchd/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfileStore sets the profile collaborator.
func WithProfileStore(p repository.ProfileStore) Option {
	return func(s *Service) {
		if p != nil {
			s.profiles = p
		}
	}
}

// WithActionLog sets the action log collaborator.
func WithActionLog(a repository.ActionLog) Option {
	return func(s *Service) {
		if a != nil {
			s.actions = a
		}
	}
}

// WithMatchStore sets the match collaborator used by cleanup.
func WithMatchStore(m repository.MatchStore) Option {
	return func(s *Service) {
		if m != nil {
			s.matches = m
		}
	}
}

// WithCache sets the recommendation cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCatalog replaces the scene catalog.
func WithCatalog(c *scene.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithCacheTTL sets the TTL of lists generated on demand.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithBatchCacheTTL sets the TTL of lists generated by the daily batch.
func WithBatchCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.batchCacheTTL = d
		}
	}
}

// WithCandidatePoolLimit bounds how many candidates are scored per generation.
func WithCandidatePoolLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.poolLimit = n
		}
	}
}

// WithResultLimits sets the default and maximum list length.
func WithResultLimits(defaultMax, maxLimit int) Option {
	return func(s *Service) {
		if defaultMax > 0 && maxLimit >= defaultMax {
			s.defaultMaxResults = defaultMax
			s.maxResultsLimit = maxLimit
		}
	}
}

// WithBatchScenes sets the scenes the daily regeneration covers.
func WithBatchScenes(scenes ...model.Scene) Option {
	return func(s *Service) {
		if len(scenes) > 0 {
			s.batchScenes = append([]model.Scene(nil), scenes...)
		}
	}
}

// WithBatchSize caps users regenerated per scene and run.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRegenerationWorkers sets the regeneration fan-out.
func WithRegenerationWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.regenerationWorkers = n
		}
	}
}

// WithSchedule sets the scheduler tick and job intervals.
func WithSchedule(tick, regeneration, cleanup, statistics time.Duration) Option {
	return func(s *Service) {
		if tick > 0 {
			s.schedulerTick = tick
		}
		if regeneration > 0 {
			s.regenerationInterval = regeneration
		}
		if cleanup > 0 {
			s.cleanupInterval = cleanup
		}
		if statistics > 0 {
			s.statisticsInterval = statistics
		}
	}
}

// WithRetention sets how long actions live and how long a match may idle.
func WithRetention(actions, matches time.Duration) Option {
	return func(s *Service) {
		if actions > 0 {
			s.actionRetention = actions
		}
		if matches > 0 {
			s.matchStaleness = matches
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
