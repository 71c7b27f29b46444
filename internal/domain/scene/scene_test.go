package scene

import (
	"errors"
	"testing"

	"github.com/okian/matchd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultCatalog(t *testing.T) {
	Convey("Given the default catalog", t, func() {
		c := Default()

		Convey("Every scene distributes exactly 100 points", func() {
			So(c.Scenes(), ShouldHaveLength, 5)
			for _, s := range c.Scenes() {
				d, err := c.Lookup(s)
				So(err, ShouldBeNil)
				So(d.TotalWeight(), ShouldAlmostEqual, MaxScore, weightEpsilon)
				for _, dim := range d.Dimensions {
					So(dim.Reason, ShouldNotBeEmpty)
				}
			}
		})

		Convey("Roles map to their counterpart in both directions", func() {
			housing, _ := c.Lookup(model.SceneHousing)
			r, err := housing.TargetRole(model.RoleSeeker)
			So(err, ShouldBeNil)
			So(r, ShouldEqual, model.RoleProvider)
			r, _ = housing.TargetRole(model.RoleProvider)
			So(r, ShouldEqual, model.RoleSeeker)

			activity, _ := c.Lookup(model.SceneActivity)
			r, _ = activity.TargetRole(model.RoleParticipant)
			So(r, ShouldEqual, model.RoleOrganizer)
		})

		Convey("Social has no counterpart role", func() {
			social, _ := c.Lookup(model.SceneSocial)
			r, err := social.TargetRole(model.RoleSocialCareer)
			So(err, ShouldBeNil)
			So(r, ShouldEqual, model.Role(""))
		})

		Convey("Roles from another scene are rejected", func() {
			housing, _ := c.Lookup(model.SceneHousing)
			_, err := housing.TargetRole(model.RoleOrganizer)
			So(errors.Is(err, model.ErrInvalidRole), ShouldBeTrue)
		})

		Convey("Unknown scenes are rejected", func() {
			_, err := c.Lookup("astrology")
			So(errors.Is(err, model.ErrInvalidScene), ShouldBeTrue)
		})

		Convey("Weights can be looked up by dimension", func() {
			housing, _ := c.Lookup(model.SceneHousing)
			w, ok := housing.Weight("price_fit")
			So(ok, ShouldBeTrue)
			So(w, ShouldEqual, 30)
			_, ok = housing.Weight("nope")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestNewCatalogValidation(t *testing.T) {
	Convey("Given malformed definitions", t, func() {
		base := Housing()

		Convey("Weights must sum to 100", func() {
			d := Housing()
			d.Dimensions = d.Dimensions[:4]
			_, err := NewCatalog(d)
			So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
		})

		Convey("Role mappings must be bidirectional", func() {
			d := Housing()
			d.Counterpart = map[model.Role]model.Role{model.RoleSeeker: model.RoleProvider}
			_, err := NewCatalog(d)
			So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
		})

		Convey("Dimension names must be unique", func() {
			d := Housing()
			d.Dimensions = append([]Dimension{}, d.Dimensions...)
			d.Dimensions[1].Name = d.Dimensions[0].Name
			_, err := NewCatalog(d)
			So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
		})

		Convey("Rules must be known", func() {
			d := Housing()
			d.Dimensions = append([]Dimension{}, d.Dimensions...)
			d.Dimensions[0].Rule = "vibes"
			_, err := NewCatalog(d)
			So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
		})

		Convey("Scenes may not repeat", func() {
			_, err := NewCatalog(base, base)
			So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
		})
	})
}
