package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/pkg/logger"
	"github.com/okian/matchd/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Breaker defaults.
const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// BreakerSettings tune the circuit breaker placed in front of a collaborator.
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Logger           logger.Logger
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = defaultFailureThreshold
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = defaultOpenTimeout
	}
	return s
}

// breaker trips after consecutive collaborator failures and maps every
// failure onto the model error taxonomy.
type breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func newBreaker(name string, settings BreakerSettings) *breaker {
	settings = settings.withDefaults()
	log := settings.Logger
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			if log != nil {
				log.Warn(context.Background(), "circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()))
			}
		},
		IsSuccessful: func(err error) bool {
			// Misses and caller cancellations say nothing about collaborator health.
			return err == nil ||
				errors.Is(err, model.ErrNotFound) ||
				errors.Is(err, ErrInvalidLimit) ||
				errors.Is(err, ErrInvalidAction) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
	}
	metrics.UpdateBreakerState(name, int(gobreaker.StateClosed))
	return &breaker{name: name, cb: gobreaker.NewCircuitBreaker[any](st)}
}

// State reports the breaker state.
func (b *breaker) State() gobreaker.State { return b.cb.State() }

func guarded[T any](b *breaker, op string, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordUpstreamError(b.name, op)
			return zero, fmt.Errorf("%w: %s %s: %w", model.ErrUpstreamUnavailable, b.name, op, err)
		}
		err = model.Classify(err)
		if errors.Is(err, model.ErrUpstreamUnavailable) {
			metrics.RecordUpstreamError(b.name, op)
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// GuardedProfileStore wraps a ProfileStore with a circuit breaker.
type GuardedProfileStore struct {
	next ProfileStore
	b    *breaker
}

// GuardProfileStore returns next behind a breaker named "profile_store".
func GuardProfileStore(next ProfileStore, settings BreakerSettings) *GuardedProfileStore {
	return &GuardedProfileStore{next: next, b: newBreaker("profile_store", settings)}
}

func (g *GuardedProfileStore) GetProfile(ctx context.Context, userID string, scene model.Scene) (model.CandidateProfile, error) {
	return guarded(g.b, "get_profile", func() (model.CandidateProfile, error) {
		return g.next.GetProfile(ctx, userID, scene)
	})
}

func (g *GuardedProfileStore) QueryActiveCandidates(ctx context.Context, scene model.Scene, targetRole model.Role, excludeUserID string, limit int) ([]model.CandidateProfile, error) {
	return guarded(g.b, "query_candidates", func() ([]model.CandidateProfile, error) {
		return g.next.QueryActiveCandidates(ctx, scene, targetRole, excludeUserID, limit)
	})
}

func (g *GuardedProfileStore) ActiveUsers(ctx context.Context, scene model.Scene, limit int) ([]string, error) {
	return guarded(g.b, "active_users", func() ([]string, error) {
		return g.next.ActiveUsers(ctx, scene, limit)
	})
}

func (g *GuardedProfileStore) Stats(ctx context.Context) (model.Statistics, error) {
	return guarded(g.b, "stats", func() (model.Statistics, error) {
		return g.next.Stats(ctx)
	})
}

// GuardedActionLog wraps an ActionLog with a circuit breaker.
type GuardedActionLog struct {
	next ActionLog
	b    *breaker
}

// GuardActionLog returns next behind a breaker named "action_log".
func GuardActionLog(next ActionLog, settings BreakerSettings) *GuardedActionLog {
	return &GuardedActionLog{next: next, b: newBreaker("action_log", settings)}
}

func (g *GuardedActionLog) GetActedTargets(ctx context.Context, userID string, scene model.Scene) (map[string]struct{}, error) {
	return guarded(g.b, "get_acted_targets", func() (map[string]struct{}, error) {
		return g.next.GetActedTargets(ctx, userID, scene)
	})
}

func (g *GuardedActionLog) Record(ctx context.Context, action model.Action) error {
	_, err := guarded(g.b, "record", func() (struct{}, error) {
		return struct{}{}, g.next.Record(ctx, action)
	})
	return err
}

func (g *GuardedActionLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return guarded(g.b, "delete_older_than", func() (int, error) {
		return g.next.DeleteOlderThan(ctx, cutoff)
	})
}

// GuardedMatchStore wraps a MatchStore with a circuit breaker.
type GuardedMatchStore struct {
	next MatchStore
	b    *breaker
}

// GuardMatchStore returns next behind a breaker named "match_store".
func GuardMatchStore(next MatchStore, settings BreakerSettings) *GuardedMatchStore {
	return &GuardedMatchStore{next: next, b: newBreaker("match_store", settings)}
}

func (g *GuardedMatchStore) DeactivateStale(ctx context.Context, cutoff time.Time) (int, error) {
	return guarded(g.b, "deactivate_stale", func() (int, error) {
		return g.next.DeactivateStale(ctx, cutoff)
	})
}
