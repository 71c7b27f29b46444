// Package types contains the wire shapes returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/matchd/internal/domain/model"
)

// Entry is one ranked candidate as served to clients.
type Entry struct {
	Rank        int                `json:"rank"`
	CandidateID string             `json:"candidate_id"`
	Score       float64            `json:"score"`
	Breakdown   map[string]float64 `json:"breakdown"`
	Reasons     []string           `json:"reasons"`
}

// Recommendations is the body of GET /v1/users/{userID}/recommendations.
type Recommendations struct {
	UserID       string    `json:"user_id"`
	Scene        string    `json:"scene"`
	FromCache    bool      `json:"from_cache"`
	GenerationID string    `json:"generation_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Count        int       `json:"count"`
	Entries      []Entry   `json:"entries"`
}

// FromList converts a ranked list. Ranks are 1-based.
func FromList(list model.RecommendationList, fromCache bool) Recommendations {
	out := Recommendations{
		UserID:       list.UserID,
		Scene:        string(list.Scene),
		FromCache:    fromCache,
		GenerationID: list.GenerationID,
		GeneratedAt:  list.GeneratedAt,
		Count:        len(list.Entries),
		Entries:      make([]Entry, len(list.Entries)),
	}
	for i, e := range list.Entries {
		out.Entries[i] = Entry{
			Rank:        i + 1,
			CandidateID: e.CandidateID,
			Score:       e.Score,
			Breakdown:   e.Breakdown.Points,
			Reasons:     e.Reasons,
		}
	}
	return out
}

// ActionRequest is the body of POST /v1/users/{userID}/actions.
type ActionRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required,max=128"`
	Scene        string `json:"scene" validate:"required"`
	Type         string `json:"type" validate:"required"`
}

// Action echoes a stored action.
type Action struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TargetUserID string    `json:"target_user_id"`
	Scene        string    `json:"scene"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromAction converts a stored action.
func FromAction(a model.Action) Action {
	return Action{
		ID:           a.ID,
		UserID:       a.UserID,
		TargetUserID: a.TargetUserID,
		Scene:        string(a.Scene),
		Type:         string(a.Type),
		CreatedAt:    a.CreatedAt,
	}
}
