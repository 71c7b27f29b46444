// Package repository defines the collaborator interfaces the recommendation
// pipeline reads from and writes to, plus in-memory and SQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/matchd/internal/domain/model"
)

// ProfileStore reads scene profiles.
type ProfileStore interface {
	// GetProfile returns the user's active profile in scene.
	// Returns model.ErrNotFound if the user has none.
	GetProfile(ctx context.Context, userID string, scene model.Scene) (model.CandidateProfile, error)

	// QueryActiveCandidates returns up to limit active, non-deleted profiles in
	// scene holding targetRole (any role when empty), excluding excludeUserID.
	QueryActiveCandidates(ctx context.Context, scene model.Scene, targetRole model.Role, excludeUserID string, limit int) ([]model.CandidateProfile, error)

	// ActiveUsers lists up to limit user ids with an active profile in scene,
	// most recently updated first.
	ActiveUsers(ctx context.Context, scene model.Scene, limit int) ([]string, error)

	// Stats counts active users and active profiles.
	Stats(ctx context.Context) (model.Statistics, error)
}

// ActionLog records and reads user actions.
type ActionLog interface {
	// GetActedTargets returns every target the user acted on in scene.
	GetActedTargets(ctx context.Context, userID string, scene model.Scene) (map[string]struct{}, error)
	// Record appends an action.
	Record(ctx context.Context, action model.Action) error
	// DeleteOlderThan removes actions created strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// MatchStore maintains mutual match records.
type MatchStore interface {
	// DeactivateStale marks active matches whose last activity is strictly
	// before cutoff as inactive.
	DeactivateStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Match is a mutual match between two users.
type Match struct {
	ID             string
	UserID         string
	OtherUserID    string
	Scene          model.Scene
	Active         bool
	LastActivityAt time.Time
}
