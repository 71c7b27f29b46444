// Package scene holds the injected scene configuration: which roles a scene
// accepts, how they pair up, and the weighted dimensions used for scoring.
package scene

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/okian/matchd/internal/domain/model"
)

// MaxScore is the total weight every scene distributes across its dimensions.
const MaxScore = 100.0

// weightEpsilon absorbs float noise when summing weights.
const weightEpsilon = 1e-9

// ErrInvalidCatalog reports a malformed scene definition.
var ErrInvalidCatalog = errors.New("invalid scene catalog")

// RuleKind selects how a dimension is scored.
type RuleKind string

// Supported rules.
const (
	// RuleRange awards full points when the offered number sits inside the
	// wanted [min,max] range and NearMissCredit within Tolerance of it.
	RuleRange RuleKind = "range"
	// RuleMatch compares a categorical value against the wanted value.
	RuleMatch RuleKind = "match"
	// RuleOverlap scales points by |A∩B| / max(|A∪B|, 1).
	RuleOverlap RuleKind = "overlap"
	// RuleDistance awards points by absolute numeric difference bands.
	RuleDistance RuleKind = "distance"
)

// Band is one step of a distance rule: differences up to Within earn Credit.
type Band struct {
	Within float64
	Credit float64
}

// Dimension is one weighted scoring rule. Offer is read from the side that
// offers something (a listing, an event, a person) and Want from the side
// that looks for it. When both are the same field the rule is symmetric.
type Dimension struct {
	Name   string
	Weight float64
	Rule   RuleKind

	Offer   string
	Want    string
	WantMin string
	WantMax string

	// Tolerance and NearMissCredit apply to RuleRange.
	Tolerance      float64
	NearMissCredit float64
	// MismatchCredit applies to RuleMatch when both sides are present but differ.
	MismatchCredit float64
	// AlternativeCredit applies to RuleMatch when the wanted value lists
	// several alternatives and one of them matches.
	AlternativeCredit float64
	// Bands apply to RuleDistance, narrowest first.
	Bands []Band

	Reason string
}

// WantFields lists the attributes read from the wanting side.
func (d Dimension) WantFields() []string {
	if d.Rule == RuleRange {
		return []string{d.WantMin, d.WantMax}
	}
	return []string{d.Want}
}

// Symmetric reports whether both sides are read from the same attribute.
func (d Dimension) Symmetric() bool {
	return d.Rule != RuleRange && d.Offer == d.Want
}

// Definition describes one scene.
type Definition struct {
	Scene       model.Scene
	Roles       []model.Role
	Counterpart map[model.Role]model.Role
	Dimensions  []Dimension
}

// TargetRole returns the role candidates must hold for a requester in role.
// An empty role means any role in the scene.
func (d Definition) TargetRole(role model.Role) (model.Role, error) {
	if !slices.Contains(d.Roles, role) {
		return "", fmt.Errorf("%w: %q in scene %s", model.ErrInvalidRole, role, d.Scene)
	}
	return d.Counterpart[role], nil
}

// Weight returns the weight of the named dimension.
func (d Definition) Weight(name string) (float64, bool) {
	for _, dim := range d.Dimensions {
		if dim.Name == name {
			return dim.Weight, true
		}
	}
	return 0, false
}

// TotalWeight sums the dimension weights.
func (d Definition) TotalWeight() float64 {
	var total float64
	for _, dim := range d.Dimensions {
		total += dim.Weight
	}
	return total
}

func (d Definition) validate() error {
	if d.Scene == "" {
		return fmt.Errorf("%w: scene without a name", ErrInvalidCatalog)
	}
	if len(d.Roles) == 0 {
		return fmt.Errorf("%w: %s has no roles", ErrInvalidCatalog, d.Scene)
	}
	for from, to := range d.Counterpart {
		if !slices.Contains(d.Roles, from) || !slices.Contains(d.Roles, to) {
			return fmt.Errorf("%w: %s pairs unknown roles %s/%s", ErrInvalidCatalog, d.Scene, from, to)
		}
		if d.Counterpart[to] != from {
			return fmt.Errorf("%w: %s role mapping %s->%s is not bidirectional", ErrInvalidCatalog, d.Scene, from, to)
		}
	}
	seen := make(map[string]bool, len(d.Dimensions))
	for _, dim := range d.Dimensions {
		if seen[dim.Name] {
			return fmt.Errorf("%w: %s repeats dimension %s", ErrInvalidCatalog, d.Scene, dim.Name)
		}
		seen[dim.Name] = true
		if dim.Weight <= 0 {
			return fmt.Errorf("%w: %s.%s has non-positive weight", ErrInvalidCatalog, d.Scene, dim.Name)
		}
		switch dim.Rule {
		case RuleRange, RuleMatch, RuleOverlap, RuleDistance:
		default:
			return fmt.Errorf("%w: %s.%s has unknown rule %q", ErrInvalidCatalog, d.Scene, dim.Name, dim.Rule)
		}
	}
	if math.Abs(d.TotalWeight()-MaxScore) > weightEpsilon {
		return fmt.Errorf("%w: %s weights sum to %.2f, want %.0f", ErrInvalidCatalog, d.Scene, d.TotalWeight(), MaxScore)
	}
	return nil
}

// Catalog maps scenes to their definitions.
type Catalog struct {
	defs  map[model.Scene]Definition
	order []model.Scene
}

// NewCatalog validates defs and builds a catalog.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[model.Scene]Definition, len(defs))}
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.Scene]; dup {
			return nil, fmt.Errorf("%w: scene %s defined twice", ErrInvalidCatalog, d.Scene)
		}
		c.defs[d.Scene] = d
		c.order = append(c.order, d.Scene)
	}
	return c, nil
}

// Lookup returns the definition for s.
func (c *Catalog) Lookup(s model.Scene) (Definition, error) {
	d, ok := c.defs[s]
	if !ok {
		return Definition{}, model.Invalid(model.ErrInvalidScene, s)
	}
	return d, nil
}

// Scenes lists the catalog's scenes in definition order.
func (c *Catalog) Scenes() []model.Scene {
	return slices.Clone(c.order)
}
