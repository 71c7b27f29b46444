// Package selection builds the bounded candidate pool a requester is scored against.
package selection

import (
	"context"
	"fmt"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/scene"
)

// ProfileSource is the slice of the profile store the selector reads.
type ProfileSource interface {
	QueryActiveCandidates(ctx context.Context, scene model.Scene, targetRole model.Role, excludeUserID string, limit int) ([]model.CandidateProfile, error)
}

// ActedSource is the slice of the action log the selector reads.
type ActedSource interface {
	GetActedTargets(ctx context.Context, userID string, scene model.Scene) (map[string]struct{}, error)
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithCatalog replaces the built-in scene catalog.
func WithCatalog(c *scene.Catalog) Option {
	return func(s *Selector) {
		if c != nil {
			s.catalog = c
		}
	}
}

// Selector produces candidate pools that never contain the requester or a
// user the requester already acted on in the scene.
type Selector struct {
	profiles ProfileSource
	actions  ActedSource
	catalog  *scene.Catalog
}

// New creates a selector over the given collaborators.
func New(profiles ProfileSource, actions ActedSource, opts ...Option) *Selector {
	s := &Selector{profiles: profiles, actions: actions, catalog: scene.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectCandidates returns at most poolLimit candidates for requester.
// Which candidates survive truncation is not specified; only ranked output
// order is.
func (s *Selector) SelectCandidates(ctx context.Context, requester model.CandidateProfile, sc model.Scene, requesterRole model.Role, poolLimit int) ([]model.CandidateProfile, error) {
	def, err := s.catalog.Lookup(sc)
	if err != nil {
		return nil, err
	}
	if requester.UserID == "" || requester.Scene != sc {
		return nil, fmt.Errorf("%w: requester has no %s profile", model.ErrNotFound, sc)
	}
	target, err := def.TargetRole(requesterRole)
	if err != nil {
		return nil, err
	}
	if poolLimit <= 0 {
		return nil, nil
	}

	acted, err := s.actions.GetActedTargets(ctx, requester.UserID, sc)
	if err != nil {
		return nil, model.Classify(err)
	}

	// Over-fetch by the exclusion set so filtering cannot starve the pool.
	raw, err := s.profiles.QueryActiveCandidates(ctx, sc, target, requester.UserID, poolLimit+len(acted))
	if err != nil {
		return nil, model.Classify(err)
	}

	pool := make([]model.CandidateProfile, 0, min(len(raw), poolLimit))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		if len(pool) == poolLimit {
			break
		}
		if c.UserID == requester.UserID || !c.Active || c.Scene != sc {
			continue
		}
		if target != "" && c.Role != target {
			continue
		}
		if _, ok := acted[c.UserID]; ok {
			continue
		}
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}
		pool = append(pool, c)
	}
	return pool, nil
}
