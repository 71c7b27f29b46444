package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/worker"
	"github.com/okian/matchd/pkg/logger"
	"github.com/okian/matchd/pkg/metrics"
)

// Job names.
const (
	JobDailyRegeneration = "daily_regeneration"
	JobHourlyCleanup     = "hourly_cleanup"
	JobStatisticsRefresh = "statistics_refresh"
)

// Per-user errors quoted in a regeneration summary.
const summaryErrorLimit = 3

// Regenerator rebuilds and caches one user's list for a scene.
type Regenerator interface {
	Regenerate(ctx context.Context, userID string, scene model.Scene) error
}

// UserSource lists the users to regenerate for a scene.
type UserSource interface {
	ActiveUsers(ctx context.Context, scene model.Scene, limit int) ([]string, error)
}

// ActionPurger drops old actions.
type ActionPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// MatchDeactivator retires matches with no recent activity.
type MatchDeactivator interface {
	DeactivateStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper evicts expired cache records.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sizer reports how many records a cache holds.
type Sizer interface {
	Len() int
}

// StatsSource counts active users and profiles.
type StatsSource interface {
	Stats(ctx context.Context) (model.Statistics, error)
}

// RegenerationJob refreshes the cached list of every active user in each
// configured scene.
type RegenerationJob struct {
	Users       UserSource
	Regenerator Regenerator
	Pool        *worker.Pool
	Scenes      []model.Scene
	// BatchSize caps how many users are regenerated per scene and run.
	BatchSize int
	Logger    logger.Logger
}

// Name implements Job.
func (j *RegenerationJob) Name() string { return JobDailyRegeneration }

// Run implements Job. It fails only when no scene could be listed; a failed
// user is counted and skipped.
func (j *RegenerationJob) Run(ctx context.Context) (Outcome, error) {
	log := jobLogger(j.Logger)
	var (
		tasks     []worker.Task
		listErrs  []error
		listedAny bool
	)
	for _, s := range j.Scenes {
		users, err := j.Users.ActiveUsers(ctx, s, j.BatchSize)
		if err != nil {
			listErrs = append(listErrs, fmt.Errorf("list %s users: %w", s, err))
			log.Warn(ctx, "listing users failed", logger.String("scene", string(s)), logger.Error(err))
			continue
		}
		listedAny = true
		for _, u := range users {
			tasks = append(tasks, worker.Task{UserID: u, Scene: s})
		}
	}
	if !listedAny && len(listErrs) > 0 {
		return Outcome{Summary: "no scene could be listed"}, errors.Join(listErrs...)
	}

	rep := j.Pool.Process(ctx, tasks, func(ctx context.Context, t worker.Task) error {
		return j.Regenerator.Regenerate(ctx, t.UserID, t.Scene)
	})

	summary := fmt.Sprintf("regenerated %d of %d lists (%d failed, %d skipped)",
		rep.Succeeded, rep.Submitted, rep.Failed, rep.Skipped)
	if per := sceneCounts(j.Scenes, rep); per != "" {
		summary += "; " + per
	}
	if len(listErrs) > 0 {
		summary += fmt.Sprintf("; %d scene(s) not listed", len(listErrs))
	}
	if len(rep.Errors) > 0 {
		shown := rep.Errors[:min(len(rep.Errors), summaryErrorLimit)]
		msgs := make([]string, 0, len(shown))
		for _, err := range shown {
			msgs = append(msgs, err.Error())
		}
		summary += "; errors: " + strings.Join(msgs, ", ")
		if more := rep.Failed - len(shown); more > 0 {
			summary += fmt.Sprintf(" (+%d more)", more)
		}
		log.Warn(ctx, "regeneration had failures",
			logger.Int("failed", rep.Failed),
			logger.Any("errors", msgs))
	}
	return Outcome{Summary: summary, Items: rep.Succeeded, Failures: rep.Failed + len(listErrs)}, nil
}

// sceneCounts renders "scene=succeeded/failed" in configured scene order.
func sceneCounts(scenes []model.Scene, rep worker.Report) string {
	parts := make([]string, 0, len(rep.Scenes))
	for _, sc := range scenes {
		if sr, ok := rep.Scenes[sc]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d/%d", sc, sr.Succeeded, sr.Failed))
		}
	}
	return strings.Join(parts, " ")
}

// CleanupJob purges old actions, stale matches and expired cache records.
type CleanupJob struct {
	Actions ActionPurger
	Matches MatchDeactivator
	Cache   Sweeper
	// ActionRetention is how long actions are kept.
	ActionRetention time.Duration
	// MatchStaleness is the inactivity after which a match is retired.
	MatchStaleness time.Duration
	Now            func() time.Time
	Logger         logger.Logger
}

// Name implements Job.
func (j *CleanupJob) Name() string { return JobHourlyCleanup }

// Run implements Job. Steps are independent; the run fails only when every
// configured step fails.
func (j *CleanupJob) Run(ctx context.Context) (Outcome, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	ts := now()
	log := jobLogger(j.Logger)

	type step struct {
		name string
		run  func() (int, error)
	}
	var steps []step
	if j.Actions != nil {
		steps = append(steps, step{"actions", func() (int, error) {
			return j.Actions.DeleteOlderThan(ctx, ts.Add(-j.ActionRetention))
		}})
	}
	if j.Matches != nil {
		steps = append(steps, step{"matches", func() (int, error) {
			return j.Matches.DeactivateStale(ctx, ts.Add(-j.MatchStaleness))
		}})
	}
	if j.Cache != nil {
		steps = append(steps, step{"cache", func() (int, error) {
			return j.Cache.SweepExpired(ctx)
		}})
	}

	var (
		errs    []error
		total   int
		summary string
	)
	for _, st := range steps {
		n, err := st.run()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			log.Warn(ctx, "cleanup step failed", logger.String("step", st.name), logger.Error(err))
			summary += fmt.Sprintf("%s=error ", st.name)
			continue
		}
		total += n
		summary += fmt.Sprintf("%s=%d ", st.name, n)
	}
	out := Outcome{Summary: strings.TrimSpace(summary), Items: total, Failures: len(errs)}
	if len(steps) > 0 && len(errs) == len(steps) {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// StatisticsJob publishes activity gauges and keeps the latest snapshot.
type StatisticsJob struct {
	Source StatsSource
	// Cache is optional and refreshes the cache size gauge.
	Cache Sizer
	Now   func() time.Time

	mu     sync.RWMutex
	latest model.Statistics
}

// Name implements Job.
func (j *StatisticsJob) Name() string { return JobStatisticsRefresh }

// Run implements Job.
func (j *StatisticsJob) Run(ctx context.Context) (Outcome, error) {
	st, err := j.Source.Stats(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("collect statistics: %w", err)
	}
	if j.Now != nil {
		st.RefreshedAt = j.Now()
	} else if st.RefreshedAt.IsZero() {
		st.RefreshedAt = time.Now()
	}
	metrics.UpdateActiveUsers(st.ActiveUsers)
	metrics.UpdateActiveProfiles(st.ActiveProfiles)
	if j.Cache != nil {
		metrics.UpdateCacheEntries(j.Cache.Len())
	}

	j.mu.Lock()
	j.latest = st
	j.mu.Unlock()
	return Outcome{
		Summary: fmt.Sprintf("active_users=%d active_profiles=%d", st.ActiveUsers, st.ActiveProfiles),
		Items:   st.ActiveProfiles,
	}, nil
}

// Latest returns the most recent snapshot, zero before the first run.
func (j *StatisticsJob) Latest() model.Statistics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.latest
}

func jobLogger(l logger.Logger) logger.Logger {
	if l != nil {
		return l
	}
	return logger.Named("scheduler")
}
