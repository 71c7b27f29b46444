// Package scoring computes deterministic, explainable compatibility scores
// between two profiles from the scene's weighted dimension table.
package scoring

import (
	"math"
	"strings"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/scene"
)

const (
	minScore = 0
	maxScore = scene.MaxScore
)

// Scorer scores requester a against candidate b in a scene.
type Scorer interface {
	Score(a, b model.CandidateProfile, s model.Scene) (float64, model.ScoreBreakdown, error)
}

// Option applies a configuration option to the RuleScorer.
type Option func(*RuleScorer)

// WithCatalog replaces the built-in scene catalog.
func WithCatalog(c *scene.Catalog) Option {
	return func(s *RuleScorer) {
		if c != nil {
			s.catalog = c
		}
	}
}

// RuleScorer implements Scorer over a scene.Catalog. It holds no mutable
// state and is safe for concurrent use.
type RuleScorer struct {
	catalog *scene.Catalog
}

// NewRuleScorer creates a scorer backed by the default catalog unless overridden.
func NewRuleScorer(opts ...Option) *RuleScorer {
	s := &RuleScorer{catalog: scene.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score sums the points of every dimension and clamps the total to [0,100].
// Missing or malformed attributes score zero for their dimension; only an
// unknown scene is an error.
func (s *RuleScorer) Score(a, b model.CandidateProfile, sc model.Scene) (float64, model.ScoreBreakdown, error) {
	def, err := s.catalog.Lookup(sc)
	if err != nil {
		return 0, model.ScoreBreakdown{}, err
	}

	bd := model.ScoreBreakdown{Points: make(map[string]float64, len(def.Dimensions))}
	var total float64
	for _, dim := range def.Dimensions {
		pts := clamp(scoreDimension(dim, a.Attributes, b.Attributes), 0, dim.Weight)
		bd.Points[dim.Name] = pts
		total += pts
	}
	bd.Total = clamp(total, minScore, maxScore)
	return bd.Total, bd, nil
}

func scoreDimension(dim scene.Dimension, a, b model.Attributes) float64 {
	wanter, offerer, ok := orient(dim, a, b)
	if !ok {
		return 0
	}
	switch dim.Rule {
	case scene.RuleRange:
		return scoreRange(dim, wanter, offerer)
	case scene.RuleMatch:
		return scoreMatch(dim, wanter, offerer)
	case scene.RuleOverlap:
		return scoreOverlap(dim, wanter, offerer)
	case scene.RuleDistance:
		return scoreDistance(dim, wanter, offerer)
	}
	return 0
}

// orient decides which side wants and which side offers. The requester is the
// wanting side when it carries any want attribute, otherwise the candidate.
func orient(dim scene.Dimension, a, b model.Attributes) (wanter, offerer model.Attributes, ok bool) {
	if dim.Symmetric() {
		return a, b, true
	}
	for _, f := range dim.WantFields() {
		if f != "" && a.Has(f) {
			return a, b, true
		}
	}
	for _, f := range dim.WantFields() {
		if f != "" && b.Has(f) {
			return b, a, true
		}
	}
	return nil, nil, false
}

func scoreRange(dim scene.Dimension, wanter, offerer model.Attributes) float64 {
	v, ok := offerer.Number(dim.Offer)
	if !ok {
		return 0
	}
	lo, hasLo := wanter.Number(dim.WantMin)
	hi, hasHi := wanter.Number(dim.WantMax)
	if !hasLo && !hasHi {
		return 0
	}
	if !hasLo {
		lo = math.Inf(-1)
	}
	if !hasHi {
		hi = math.Inf(1)
	}
	if lo > hi {
		lo, hi = hi, lo
	}

	var miss float64
	switch {
	case v < lo:
		miss = lo - v
	case v > hi:
		miss = v - hi
	default:
		return dim.Weight
	}
	if miss <= dim.Tolerance {
		return dim.Weight * dim.NearMissCredit
	}
	return 0
}

func scoreMatch(dim scene.Dimension, wanter, offerer model.Attributes) float64 {
	offered := normalize(offerer.String(dim.Offer))
	wanted := normalize(wanter.String(dim.Want))
	if offered == "" || wanted == "" {
		return 0
	}
	if offered == wanted {
		return dim.Weight
	}
	for _, alt := range wanter.Strings(dim.Want) {
		alt = normalize(alt)
		if alt == offered || strings.Contains(offered, alt) {
			return dim.Weight * dim.AlternativeCredit
		}
	}
	return dim.Weight * dim.MismatchCredit
}

func scoreOverlap(dim scene.Dimension, wanter, offerer model.Attributes) float64 {
	want := toSet(wanter.Strings(dim.Want))
	offer := toSet(offerer.Strings(dim.Offer))
	if len(want) == 0 || len(offer) == 0 {
		return 0
	}
	var inter int
	for k := range offer {
		if _, ok := want[k]; ok {
			inter++
		}
	}
	union := len(want) + len(offer) - inter
	return dim.Weight * float64(inter) / float64(max(union, 1))
}

func scoreDistance(dim scene.Dimension, wanter, offerer model.Attributes) float64 {
	x, okX := wanter.Number(dim.Want)
	y, okY := offerer.Number(dim.Offer)
	if !okX || !okY {
		return 0
	}
	d := math.Abs(x - y)
	for _, band := range dim.Bands {
		if d <= band.Within {
			return dim.Weight * band.Credit
		}
	}
	return 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it = normalize(it); it != "" {
			set[it] = struct{}{}
		}
	}
	return set
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
