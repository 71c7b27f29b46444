// Package service provides the recommendation service behind the HTTP API
// and the batch scheduler.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchd/internal/adapters/cache"
	"github.com/okian/matchd/internal/adapters/repository"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/ranking"
	"github.com/okian/matchd/internal/domain/scene"
	"github.com/okian/matchd/internal/domain/scoring"
	"github.com/okian/matchd/internal/domain/selection"
	"github.com/okian/matchd/internal/scheduler"
	"github.com/okian/matchd/internal/worker"
	"github.com/okian/matchd/pkg/logger"
	"github.com/okian/matchd/pkg/metrics"
)

// A generation whose cache write lost to a concurrent action is retried this
// many times in total before its list is returned uncached.
const maxGenerationAttempts = 3

// Service composes selection, ranking and the cache into the single path
// that produces recommendation lists, and owns the batch scheduler.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	profiles repository.ProfileStore
	actions  repository.ActionLog
	matches  repository.MatchStore
	cache    cache.Cache
	catalog  *scene.Catalog

	// Pipeline
	selector  *selection.Selector
	ranker    *ranking.Ranker
	guard     *writeGuard
	scheduler *scheduler.Scheduler
	stats     *scheduler.StatisticsJob

	// Configuration
	cacheTTL             time.Duration
	batchCacheTTL        time.Duration
	poolLimit            int
	defaultMaxResults    int
	maxResultsLimit      int
	batchScenes          []model.Scene
	batchSize            int
	regenerationWorkers  int
	schedulerTick        time.Duration
	regenerationInterval time.Duration
	cleanupInterval      time.Duration
	statisticsInterval   time.Duration
	actionRetention      time.Duration
	matchStaleness       time.Duration
	now                  func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a Service. Collaborators that are not supplied default to
// one shared in-memory store and an in-memory sharded cache.
func New(opts ...Option) *Service {
	s := &Service{
		catalog:              scene.Default(),
		cacheTTL:             24 * time.Hour,
		batchCacheTTL:        26 * time.Hour,
		poolLimit:            50,
		defaultMaxResults:    10,
		maxResultsLimit:      100,
		batchScenes:          []model.Scene{model.SceneHousing, model.SceneDating, model.SceneActivity},
		batchSize:            200,
		regenerationWorkers:  8,
		schedulerTick:        time.Minute,
		regenerationInterval: 24 * time.Hour,
		cleanupInterval:      time.Hour,
		statisticsInterval:   30 * time.Minute,
		actionRetention:      30 * 24 * time.Hour,
		matchStaleness:       7 * 24 * time.Hour,
		now:                  time.Now,
		guard:                newWriteGuard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.profiles == nil || s.actions == nil || s.matches == nil {
		mem := repository.NewMemoryStore(repository.WithClock(s.now))
		if s.profiles == nil {
			s.profiles = mem
		}
		if s.actions == nil {
			s.actions = mem
		}
		if s.matches == nil {
			s.matches = mem
		}
	}
	if s.cache == nil {
		s.cache = cache.NewSharded(cache.WithClock(s.now))
	}

	scorer := scoring.NewRuleScorer(scoring.WithCatalog(s.catalog))
	s.selector = selection.New(s.profiles, s.actions, selection.WithCatalog(s.catalog))
	s.ranker = ranking.New(scorer, ranking.WithCatalog(s.catalog))
	s.buildScheduler()
	return s
}

func (s *Service) buildScheduler() {
	s.scheduler = scheduler.New(
		scheduler.WithTick(s.schedulerTick),
		scheduler.WithClock(s.now),
		scheduler.WithLogger(s.logger.Named("scheduler")),
	)

	var sizer scheduler.Sizer
	if sz, ok := s.cache.(cache.Sizer); ok {
		sizer = sz
	}
	s.stats = &scheduler.StatisticsJob{Source: s.profiles, Cache: sizer, Now: s.now}

	jobs := []struct {
		job      scheduler.Job
		interval time.Duration
	}{
		{&scheduler.RegenerationJob{
			Users:       s.profiles,
			Regenerator: s,
			Pool: worker.NewPool(s.regenerationWorkers,
				worker.WithName("regeneration"),
				worker.WithLogger(s.logger.Named("regeneration"))),
			Scenes:    s.batchScenes,
			BatchSize: s.batchSize,
			Logger:    s.logger.Named(scheduler.JobDailyRegeneration),
		}, s.regenerationInterval},
		{&scheduler.CleanupJob{
			Actions:         s.actions,
			Matches:         s.matches,
			Cache:           s.cache,
			ActionRetention: s.actionRetention,
			MatchStaleness:  s.matchStaleness,
			Now:             s.now,
			Logger:          s.logger.Named(scheduler.JobHourlyCleanup),
		}, s.cleanupInterval},
		{s.stats, s.statisticsInterval},
	}
	for _, j := range jobs {
		// Names are fixed and intervals positive, so Register cannot fail here.
		_ = s.scheduler.Register(j.job, j.interval)
	}
}

// Start starts the scheduler timer loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting recommendation service...")
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.Duration("cacheTTL", s.cacheTTL),
		logger.Int("poolLimit", s.poolLimit),
		logger.Any("batchScenes", s.batchScenes),
		logger.Int("regenerationWorkers", s.regenerationWorkers),
	)
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping recommendation service...")
	s.scheduler.Stop()
	s.started = false
	s.logger.Info(context.Background(), "recommendation service stopped")
}

// GetRecommendations returns up to maxResults ranked candidates for userID in
// sc. A cached list is served unless forceRefresh is set; a cached list
// shorter than maxResults is returned as is. A maxResults of zero or less
// selects the default; larger values are capped.
func (s *Service) GetRecommendations(ctx context.Context, userID string, sc model.Scene, maxResults int, forceRefresh bool) (model.RecommendationList, bool, error) {
	if _, err := s.catalog.Lookup(sc); err != nil {
		return model.RecommendationList{}, false, err
	}
	n := s.resultCount(maxResults)

	if !forceRefresh {
		list, ok, err := s.cache.Get(ctx, userID, sc)
		switch {
		case err != nil:
			metrics.RecordUpstreamError("cache", "get")
			s.logger.Warn(ctx, "cache read failed, generating",
				logger.String("user_id", userID),
				logger.String("scene", string(sc)),
				logger.Error(err))
		case ok:
			metrics.RecordCacheHit(string(sc))
			return list.Truncate(n), true, nil
		}
		metrics.RecordCacheMiss(string(sc))
	}

	list, err := s.generate(ctx, userID, sc, max(n, s.defaultMaxResults), s.cacheTTL)
	if err != nil {
		return model.RecommendationList{}, false, err
	}
	return list.Truncate(n), false, nil
}

// Regenerate rebuilds and caches userID's list for sc with the batch TTL. It
// shares the generation path with GetRecommendations.
func (s *Service) Regenerate(ctx context.Context, userID string, sc model.Scene) error {
	if _, err := s.catalog.Lookup(sc); err != nil {
		return err
	}
	_, err := s.generate(ctx, userID, sc, s.defaultMaxResults, s.batchCacheTTL)
	return err
}

func (s *Service) generate(ctx context.Context, userID string, sc model.Scene, size int, ttl time.Duration) (model.RecommendationList, error) {
	start := s.now()
	list, err := s.generateAndStore(ctx, userID, sc, size, ttl)
	metrics.RecordGeneration(string(sc), model.Kind(err))
	metrics.RecordGenerationLatency(string(sc), float64(s.now().Sub(start).Microseconds())/1000)
	if err != nil {
		return model.RecommendationList{}, err
	}
	for _, e := range list.Entries {
		metrics.ObserveCompatibilityScore(string(sc), e.Score)
	}
	return list, nil
}

func (s *Service) generateAndStore(ctx context.Context, userID string, sc model.Scene, size int, ttl time.Duration) (model.RecommendationList, error) {
	for attempt := 1; ; attempt++ {
		f := s.guard.begin(userID, sc)
		list, err := s.build(ctx, userID, sc, size)
		if err != nil {
			s.guard.abandon(userID, sc, f)
			return model.RecommendationList{}, err
		}

		var cancelled error
		written, werr := s.guard.commit(userID, sc, f, func() error {
			if err := ctx.Err(); err != nil {
				cancelled = model.Classify(err)
				return nil
			}
			return s.cache.Set(ctx, userID, sc, list, ttl)
		})
		if cancelled != nil {
			return model.RecommendationList{}, cancelled
		}
		if werr != nil {
			metrics.RecordUpstreamError("cache", "set")
			s.logger.Warn(ctx, "cache write failed",
				logger.String("user_id", userID),
				logger.String("scene", string(sc)),
				logger.Error(werr))
		}
		if written || attempt == maxGenerationAttempts {
			if !written {
				s.logger.Debug(ctx, "returning uncached list after repeated invalidation",
					logger.String("user_id", userID),
					logger.String("scene", string(sc)))
			}
			return list, nil
		}
	}
}

// build runs selection and ranking. It performs no writes.
func (s *Service) build(ctx context.Context, userID string, sc model.Scene, size int) (model.RecommendationList, error) {
	if err := ctx.Err(); err != nil {
		return model.RecommendationList{}, model.Classify(err)
	}
	requester, err := s.profiles.GetProfile(ctx, userID, sc)
	if err != nil {
		return model.RecommendationList{}, model.Classify(err)
	}
	pool, err := s.selector.SelectCandidates(ctx, requester, sc, requester.Role, s.poolLimit)
	if err != nil {
		return model.RecommendationList{}, err
	}
	metrics.RecordCandidatePoolSize(string(sc), len(pool))
	if err := ctx.Err(); err != nil {
		return model.RecommendationList{}, model.Classify(err)
	}

	list, err := s.ranker.Rank(requester, pool, sc, size)
	if err != nil {
		return model.RecommendationList{}, err
	}
	list.UserID = userID
	list.GenerationID = uuid.NewString()
	list.GeneratedAt = s.now()
	return list, nil
}

func (s *Service) resultCount(maxResults int) int {
	switch {
	case maxResults <= 0:
		return s.defaultMaxResults
	case maxResults > s.maxResultsLimit:
		return s.maxResultsLimit
	default:
		return maxResults
	}
}

// Invalidate drops userID's cached lists for the given scenes, or for every
// scene when none are given. Generations already in flight for those keys
// will not write their result.
func (s *Service) Invalidate(ctx context.Context, userID string, scenes ...model.Scene) error {
	for _, sc := range scenes {
		if _, err := s.catalog.Lookup(sc); err != nil {
			return err
		}
	}
	err := s.guard.invalidate(userID, scenes, func() error {
		return s.cache.Invalidate(ctx, userID, scenes...)
	})
	if err != nil {
		metrics.RecordUpstreamError("cache", "invalidate")
		return model.Classify(err)
	}
	return nil
}

// RecordAction validates and stores action, then invalidates the actor's
// cached list for the scene. It returns the stored action with its id and
// timestamp filled.
func (s *Service) RecordAction(ctx context.Context, action model.Action) (model.Action, error) {
	if _, err := s.catalog.Lookup(action.Scene); err != nil {
		return model.Action{}, err
	}
	typ, err := model.ParseActionType(string(action.Type))
	if err != nil {
		return model.Action{}, err
	}
	action.Type = typ
	switch {
	case action.UserID == "" || action.TargetUserID == "":
		return model.Action{}, fmt.Errorf("%w: user and target are required", model.ErrInvalidAction)
	case action.UserID == action.TargetUserID:
		return model.Action{}, model.Invalid(model.ErrInvalidAction, "self-action by "+action.UserID)
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}

	if err := s.actions.Record(ctx, action); err != nil {
		if errors.Is(err, repository.ErrInvalidAction) {
			return model.Action{}, fmt.Errorf("%w: %w", model.ErrInvalidAction, err)
		}
		return model.Action{}, model.Classify(err)
	}
	metrics.RecordAction(string(action.Scene), string(action.Type))

	err = s.guard.invalidate(action.UserID, []model.Scene{action.Scene}, func() error {
		return s.cache.Invalidate(ctx, action.UserID, action.Scene)
	})
	if err != nil {
		// The action is stored; a stale cached list only lives until its TTL.
		metrics.RecordUpstreamError("cache", "invalidate")
		s.logger.Warn(ctx, "cache invalidation after action failed",
			logger.String("user_id", action.UserID),
			logger.String("scene", string(action.Scene)),
			logger.Error(err))
	}
	return action, nil
}

// Scenes lists the scenes the service can rank.
func (s *Service) Scenes() []model.Scene {
	return s.catalog.Scenes()
}

// Jobs lists the scheduler's job names.
func (s *Service) Jobs() []string {
	return s.scheduler.Jobs()
}

// SchedulerStatus returns the last run of every job that has run.
func (s *Service) SchedulerStatus() map[string]scheduler.JobRun {
	return s.scheduler.Status()
}

// TriggerJob runs the named job synchronously.
func (s *Service) TriggerJob(ctx context.Context, name string) (scheduler.JobRun, error) {
	return s.scheduler.TriggerManually(ctx, name)
}

// Statistics returns the latest statistics snapshot.
func (s *Service) Statistics() model.Statistics {
	return s.stats.Latest()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       started,
		"scenes":        s.catalog.Scenes(),
		"batchScenes":   s.batchScenes,
		"poolLimit":     s.poolLimit,
		"cacheTTL":      s.cacheTTL.String(),
		"batchCacheTTL": s.batchCacheTTL.String(),
		"statistics":    s.stats.Latest(),
		"jobs":          s.scheduler.Status(),
	}
	if sz, ok := s.cache.(cache.Sizer); ok {
		stats["cacheEntries"] = sz.Len()
	}
	return stats
}
