package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchd/internal/domain/model"
)

var (
	_ ProfileStore = (*MemoryStore)(nil)
	_ ActionLog    = (*MemoryStore)(nil)
	_ MatchStore   = (*MemoryStore)(nil)
)

type profileKey struct {
	userID string
	scene  model.Scene
}

type storedProfile struct {
	profile model.CandidateProfile
	deleted bool
}

// MemoryStore keeps profiles, actions and matches in process memory. It
// implements ProfileStore, ActionLog and MatchStore and is safe for
// concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[profileKey]*storedProfile
	actions  []model.Action
	matches  map[string]*Match
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[profileKey]*storedProfile),
		matches:  make(map[string]*Match),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutProfile inserts or replaces a profile.
func (s *MemoryStore) PutProfile(p model.CandidateProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	s.profiles[profileKey{p.UserID, p.Scene}] = &storedProfile{profile: p}
}

// DeleteProfile soft-deletes a profile.
func (s *MemoryStore) DeleteProfile(userID string, scene model.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp, ok := s.profiles[profileKey{userID, scene}]; ok {
		sp.deleted = true
	}
}

// PutMatch inserts or replaces a match record.
func (s *MemoryStore) PutMatch(m Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.matches[m.ID] = &m
}

// Match returns a copy of the match with id.
func (s *MemoryStore) Match(id string) (Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return Match{}, false
	}
	return *m, true
}

// Actions returns a copy of the action log.
func (s *MemoryStore) Actions() []model.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Action(nil), s.actions...)
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID string, scene model.Scene) (model.CandidateProfile, error) {
	if err := ctx.Err(); err != nil {
		return model.CandidateProfile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.profiles[profileKey{userID, scene}]
	if !ok || sp.deleted || !sp.profile.Active {
		return model.CandidateProfile{}, fmt.Errorf("%w: user %s has no %s profile", model.ErrNotFound, userID, scene)
	}
	return sp.profile, nil
}

func (s *MemoryStore) QueryActiveCandidates(ctx context.Context, scene model.Scene, targetRole model.Role, excludeUserID string, limit int) ([]model.CandidateProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out := make([]model.CandidateProfile, 0, limit)
	for k, sp := range s.profiles {
		if k.scene != scene || k.userID == excludeUserID || sp.deleted || !sp.profile.Active {
			continue
		}
		if targetRole != "" && sp.profile.Role != targetRole {
			continue
		}
		out = append(out, sp.profile)
	}
	s.mu.RUnlock()

	sortByRecency(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ActiveUsers(ctx context.Context, scene model.Scene, limit int) ([]string, error) {
	candidates, err := s.QueryActiveCandidates(ctx, scene, "", "", limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UserID
	}
	return ids, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (model.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return model.Statistics{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]struct{})
	var stats model.Statistics
	for k, sp := range s.profiles {
		if sp.deleted || !sp.profile.Active {
			continue
		}
		stats.ActiveProfiles++
		users[k.userID] = struct{}{}
	}
	stats.ActiveUsers = len(users)
	return stats, nil
}

func (s *MemoryStore) GetActedTargets(ctx context.Context, userID string, scene model.Scene) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	acted := make(map[string]struct{})
	for _, a := range s.actions {
		if a.UserID == userID && a.Scene == scene {
			acted[a.TargetUserID] = struct{}{}
		}
	}
	return acted, nil
}

func (s *MemoryStore) Record(ctx context.Context, action model.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if action.UserID == "" || action.TargetUserID == "" {
		return ErrInvalidAction
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.now()
	}
	s.actions = append(s.actions, action)
	return nil
}

func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.actions[:0]
	for _, a := range s.actions {
		if !a.CreatedAt.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(s.actions) - len(kept)
	clear(s.actions[len(kept):])
	s.actions = kept
	return removed, nil
}

func (s *MemoryStore) DeactivateStale(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, m := range s.matches {
		if m.Active && m.LastActivityAt.Before(cutoff) {
			m.Active = false
			n++
		}
	}
	return n, nil
}

// sortByRecency orders profiles by UpdatedAt descending, then user id.
func sortByRecency(ps []model.CandidateProfile) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].UpdatedAt.Equal(ps[j].UpdatedAt) {
			return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
		}
		return ps[i].UserID < ps[j].UserID
	})
}
