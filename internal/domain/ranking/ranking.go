// Package ranking turns a candidate pool into an ordered, explained
// recommendation list.
package ranking

import (
	"sort"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/scene"
	"github.com/okian/matchd/internal/domain/scoring"
)

// Reason defaults.
const (
	DefaultReasonThreshold = 0.7
	DefaultFallbackReason  = "Recommended for you"
)

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithCatalog replaces the built-in scene catalog used for reasons.
func WithCatalog(c *scene.Catalog) Option {
	return func(r *Ranker) {
		if c != nil {
			r.catalog = c
		}
	}
}

// WithReasonThreshold sets the share of a dimension's weight that must be
// awarded before its reason is shown.
func WithReasonThreshold(share float64) Option {
	return func(r *Ranker) {
		if share > 0 && share <= 1 {
			r.threshold = share
		}
	}
}

// WithFallbackReason sets the reason used when no dimension qualifies.
func WithFallbackReason(reason string) Option {
	return func(r *Ranker) {
		if reason != "" {
			r.fallback = reason
		}
	}
}

// Ranker scores, sorts and explains candidates. It performs no I/O.
type Ranker struct {
	scorer    scoring.Scorer
	catalog   *scene.Catalog
	threshold float64
	fallback  string
}

// New creates a ranker around scorer.
func New(scorer scoring.Scorer, opts ...Option) *Ranker {
	r := &Ranker{
		scorer:    scorer,
		catalog:   scene.Default(),
		threshold: DefaultReasonThreshold,
		fallback:  DefaultFallbackReason,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every candidate against requester and returns the best
// maxResults entries, score descending with candidate id breaking ties.
// Only Entries and Scene are filled; the caller stamps identity fields.
func (r *Ranker) Rank(requester model.CandidateProfile, candidates []model.CandidateProfile, sc model.Scene, maxResults int) (model.RecommendationList, error) {
	def, err := r.catalog.Lookup(sc)
	if err != nil {
		return model.RecommendationList{}, err
	}

	entries := make([]model.RecommendationEntry, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}

		score, bd, err := r.scorer.Score(requester, c, sc)
		if err != nil {
			return model.RecommendationList{}, err
		}
		entries = append(entries, model.RecommendationEntry{
			CandidateID: c.UserID,
			Score:       score,
			Breakdown:   bd,
			Reasons:     r.Reasons(def, bd),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CandidateID < entries[j].CandidateID
	})
	if maxResults >= 0 && len(entries) > maxResults {
		entries = entries[:maxResults]
	}
	return model.RecommendationList{Scene: sc, Entries: entries}, nil
}

// Reasons derives explanations from a breakdown alone, in dimension order.
func (r *Ranker) Reasons(def scene.Definition, bd model.ScoreBreakdown) []string {
	var reasons []string
	for _, dim := range def.Dimensions {
		if bd.Points[dim.Name] >= dim.Weight*r.threshold {
			reasons = append(reasons, dim.Reason)
		}
	}
	if len(reasons) == 0 {
		return []string{r.fallback}
	}
	return reasons
}
