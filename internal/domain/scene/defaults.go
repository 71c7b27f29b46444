package scene

import (
	"github.com/okian/matchd/internal/domain/model"
)

// Tolerances and partial credits of the built-in tables.
const (
	housingPriceTolerance  = 500
	activityPriceTolerance = 50
	twoThirds              = 2.0 / 3.0
	alternativeCredit      = 0.6
	softMismatchCredit     = 0.5
)

var (
	seekerProvider = map[model.Role]model.Role{
		model.RoleSeeker:   model.RoleProvider,
		model.RoleProvider: model.RoleSeeker,
	}
	organizerParticipant = map[model.Role]model.Role{
		model.RoleOrganizer:   model.RoleParticipant,
		model.RoleParticipant: model.RoleOrganizer,
	}
)

// Housing pairs tenants (seekers) with landlords (providers).
func Housing() Definition {
	return Definition{
		Scene:       model.SceneHousing,
		Roles:       []model.Role{model.RoleSeeker, model.RoleProvider},
		Counterpart: seekerProvider,
		Dimensions: []Dimension{
			{
				Name: "price_fit", Weight: 30, Rule: RuleRange,
				Offer: "housing_price", WantMin: "housing_budget_min", WantMax: "housing_budget_max",
				Tolerance: housingPriceTolerance, NearMissCredit: twoThirds,
				Reason: "Price fits your budget",
			},
			{
				Name: "location_match", Weight: 25, Rule: RuleMatch,
				Offer: "location", Want: "preferred_location",
				AlternativeCredit: alternativeCredit,
				Reason:            "Location matches your preference",
			},
			{
				Name: "property_type", Weight: 20, Rule: RuleMatch,
				Offer: "housing_type", Want: "preferred_housing_type",
				Reason: "Property type is what you are looking for",
			},
			{
				Name: "lease_term", Weight: 15, Rule: RuleMatch,
				Offer: "housing_lease_term", Want: "housing_lease_duration",
				MismatchCredit: softMismatchCredit,
				Reason:         "Lease term fits",
			},
			{
				Name: "lifestyle_overlap", Weight: 10, Rule: RuleOverlap,
				Offer: "housing_preferences", Want: "living_habits",
				Reason: "Compatible living habits",
			},
		},
	}
}

// Dating compares two people on symmetric attributes.
func Dating() Definition {
	return Definition{
		Scene:       model.SceneDating,
		Roles:       []model.Role{model.RoleSeeker, model.RoleProvider},
		Counterpart: seekerProvider,
		Dimensions: []Dimension{
			{
				Name: "shared_interests", Weight: 30, Rule: RuleOverlap,
				Offer: "interests", Want: "interests",
				Reason: "You share interests",
			},
			{
				Name: "age_proximity", Weight: 20, Rule: RuleDistance,
				Offer: "age", Want: "age",
				Bands:  []Band{{Within: 3, Credit: 1}, {Within: 5, Credit: 0.75}, {Within: 10, Credit: 0.5}},
				Reason: "Similar age",
			},
			{
				Name: "location_match", Weight: 20, Rule: RuleMatch,
				Offer: "location", Want: "location",
				AlternativeCredit: alternativeCredit,
				Reason:            "Same city",
			},
			{
				Name: "education", Weight: 15, Rule: RuleMatch,
				Offer: "education", Want: "education",
				MismatchCredit: softMismatchCredit,
				Reason:         "Similar education",
			},
			{
				Name: "occupation", Weight: 15, Rule: RuleMatch,
				Offer: "occupation", Want: "occupation",
				MismatchCredit: softMismatchCredit,
				Reason:         "Similar line of work",
			},
		},
	}
}

// Activity pairs organizers with participants.
func Activity() Definition {
	return Definition{
		Scene:       model.SceneActivity,
		Roles:       []model.Role{model.RoleOrganizer, model.RoleParticipant},
		Counterpart: organizerParticipant,
		Dimensions: []Dimension{
			{
				Name: "activity_type", Weight: 35, Rule: RuleMatch,
				Offer: "activity_type", Want: "preferred_activity_type",
				Reason: "Activity type matches",
			},
			{
				Name: "time_match", Weight: 25, Rule: RuleMatch,
				Offer: "activity_time", Want: "preferred_activity_time",
				MismatchCredit: alternativeCredit,
				Reason:         "Time works for you",
			},
			{
				Name: "location_match", Weight: 20, Rule: RuleMatch,
				Offer: "activity_location", Want: "preferred_activity_location",
				AlternativeCredit: alternativeCredit,
				Reason:            "Convenient location",
			},
			{
				Name: "budget_fit", Weight: 20, Rule: RuleRange,
				Offer: "activity_price", WantMin: "activity_budget_min", WantMax: "activity_budget_max",
				Tolerance: activityPriceTolerance, NearMissCredit: alternativeCredit,
				Reason: "Within your budget",
			},
		},
	}
}

// Business pairs people looking for a partner or hire with those offering.
func Business() Definition {
	return Definition{
		Scene:       model.SceneBusiness,
		Roles:       []model.Role{model.RoleSeeker, model.RoleProvider},
		Counterpart: seekerProvider,
		Dimensions: []Dimension{
			{
				Name: "industry", Weight: 30, Rule: RuleMatch,
				Offer: "industry", Want: "industry",
				Reason: "Same industry",
			},
			{
				Name: "skills_overlap", Weight: 25, Rule: RuleOverlap,
				Offer: "skills", Want: "skills",
				Reason: "Complementary skills",
			},
			{
				Name: "location_match", Weight: 20, Rule: RuleMatch,
				Offer: "location", Want: "location",
				AlternativeCredit: alternativeCredit,
				Reason:            "Same city",
			},
			{
				Name: "experience", Weight: 15, Rule: RuleDistance,
				Offer: "experience_years", Want: "experience_years",
				Bands:  []Band{{Within: 2, Credit: 1}, {Within: 5, Credit: 0.5}},
				Reason: "Comparable experience",
			},
			{
				Name: "company_size", Weight: 10, Rule: RuleMatch,
				Offer: "company_size", Want: "company_size",
				MismatchCredit: softMismatchCredit,
				Reason:         "Similar company size",
			},
		},
	}
}

// Social is open networking: there is no counterpart role, everyone in the
// scene is a candidate for everyone else.
func Social() Definition {
	return Definition{
		Scene: model.SceneSocial,
		Roles: []model.Role{
			model.RoleSocialBusiness, model.RoleSocialCareer, model.RoleSocialInterest,
			model.RoleSocialDating, model.RoleSocialBasic,
		},
		Dimensions: []Dimension{
			{
				Name: "shared_interests", Weight: 30, Rule: RuleOverlap,
				Offer: "interests", Want: "interests",
				Reason: "You share interests",
			},
			{
				Name: "industry", Weight: 25, Rule: RuleMatch,
				Offer: "industry", Want: "industry",
				Reason: "Same industry",
			},
			{
				Name: "skills_overlap", Weight: 20, Rule: RuleOverlap,
				Offer: "skills", Want: "skills",
				Reason: "Shared skills",
			},
			{
				Name: "location_match", Weight: 15, Rule: RuleMatch,
				Offer: "location", Want: "location",
				AlternativeCredit: alternativeCredit,
				Reason:            "Same city",
			},
			{
				Name: "occupation", Weight: 10, Rule: RuleMatch,
				Offer: "occupation", Want: "occupation",
				MismatchCredit: softMismatchCredit,
				Reason:         "Similar line of work",
			},
		},
	}
}

// Default returns the built-in catalog. It panics if a built-in table is
// malformed, which the package tests rule out.
func Default() *Catalog {
	c, err := NewCatalog(Housing(), Dating(), Activity(), Business(), Social())
	if err != nil {
		panic(err)
	}
	return c
}
