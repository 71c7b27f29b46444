// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Scene is a matching context with its own roles and scoring table.
type Scene string

// Known scenes.
const (
	SceneHousing  Scene = "housing"
	SceneDating   Scene = "dating"
	SceneActivity Scene = "activity"
	SceneBusiness Scene = "business"
	SceneSocial   Scene = "social"
)

// ParseScene normalizes s and checks it against the known scenes.
func ParseScene(s string) (Scene, error) {
	scene := Scene(strings.ToLower(strings.TrimSpace(s)))
	switch scene {
	case SceneHousing, SceneDating, SceneActivity, SceneBusiness, SceneSocial:
		return scene, nil
	}
	return "", Invalid(ErrInvalidScene, s)
}

// Role is a user's stance within a scene.
type Role string

// Roles used by the built-in scenes.
const (
	RoleSeeker      Role = "seeker"
	RoleProvider    Role = "provider"
	RoleOrganizer   Role = "organizer"
	RoleParticipant Role = "participant"

	RoleSocialBusiness Role = "social_business"
	RoleSocialCareer   Role = "social_career"
	RoleSocialInterest Role = "social_interest"
	RoleSocialDating   Role = "social_dating"
	RoleSocialBasic    Role = "social_basic"
)

// CandidateProfile is a read-only snapshot of one user's profile in one scene.
type CandidateProfile struct {
	UserID     string
	Scene      Scene
	Role       Role
	Active     bool
	Attributes Attributes
	UpdatedAt  time.Time
}

// ScoreBreakdown holds the points awarded per dimension and their clamped sum.
type ScoreBreakdown struct {
	Points map[string]float64 `json:"points"`
	Total  float64            `json:"total"`
}

// RecommendationEntry is one ranked candidate.
type RecommendationEntry struct {
	CandidateID string         `json:"candidate_id"`
	Score       float64        `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Reasons     []string       `json:"reasons"`
}

// RecommendationList is a ranked list for one (user, scene) pair.
// Entries are sorted by score descending, then candidate id ascending.
type RecommendationList struct {
	UserID       string                `json:"user_id"`
	Scene        Scene                 `json:"scene"`
	Entries      []RecommendationEntry `json:"entries"`
	GenerationID string                `json:"generation_id"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// Len returns the number of entries.
func (l RecommendationList) Len() int { return len(l.Entries) }

// Truncate returns a copy holding at most n entries. A list shorter than n is
// returned as is.
func (l RecommendationList) Truncate(n int) RecommendationList {
	if n < 0 || n >= len(l.Entries) {
		return l
	}
	out := l
	out.Entries = l.Entries[:n:n]
	return out
}

// CandidateIDs lists entry ids in rank order.
func (l RecommendationList) CandidateIDs() []string {
	ids := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		ids[i] = e.CandidateID
	}
	return ids
}

// ActionType is a user's decision toward another user.
type ActionType string

// Action types accepted by the action log.
const (
	ActionLike       ActionType = "like"
	ActionDislike    ActionType = "dislike"
	ActionSuperLike  ActionType = "super_like"
	ActionPass       ActionType = "pass"
	ActionCollection ActionType = "collection"
	ActionFollow     ActionType = "follow"
)

// ParseActionType validates s as an action type.
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionLike, ActionDislike, ActionSuperLike, ActionPass, ActionCollection, ActionFollow:
		return a, nil
	}
	return "", Invalid(ErrInvalidAction, s)
}

// Action is one action-log row.
type Action struct {
	ID           string
	UserID       string
	TargetUserID string
	Scene        Scene
	Type         ActionType
	CreatedAt    time.Time
}

// Statistics are the aggregate counters refreshed by the scheduler.
type Statistics struct {
	ActiveUsers    int       `json:"active_users"`
	ActiveProfiles int       `json:"active_profiles"`
	RefreshedAt    time.Time `json:"refreshed_at"`
}
