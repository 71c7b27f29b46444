// Package cache stores ranked recommendation lists per (user, scene) with a
// hard, per-record TTL.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/okian/matchd/internal/domain/model"
)

// ErrInvalidTTL is returned by Set for non-positive TTLs.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Cache is the recommendation cache contract. Implementations must be safe
// for concurrent use; writes to the same key are last-write-wins.
type Cache interface {
	// Get returns the list cached for (userID, scene). Expired records are
	// reported as absent.
	Get(ctx context.Context, userID string, scene model.Scene) (model.RecommendationList, bool, error)
	// Set stores list until now+ttl, replacing any existing record.
	Set(ctx context.Context, userID string, scene model.Scene, list model.RecommendationList, ttl time.Duration) error
	// Invalidate removes the given scenes for userID, or every scene when none are given.
	Invalidate(ctx context.Context, userID string, scenes ...model.Scene) error
	// SweepExpired evicts every expired record and returns how many were removed.
	SweepExpired(ctx context.Context) (int, error)
}

// Sizer is implemented by caches that can report their record count.
type Sizer interface {
	Len() int
}

// Record is one cached list with its lifetime.
type Record struct {
	List      model.RecommendationList `json:"list"`
	CreatedAt time.Time                `json:"created_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Expired reports whether the record is no longer valid at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
