package types_test

import (
	"testing"
	"time"

	"github.com/okian/matchd/internal/domain/model"
	types "github.com/okian/matchd/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromList(t *testing.T) {
	Convey("Given a ranked list", t, func() {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		list := model.RecommendationList{
			UserID: "u1", Scene: model.SceneDating, GenerationID: "g1", GeneratedAt: at,
			Entries: []model.RecommendationEntry{
				{CandidateID: "a", Score: 80, Breakdown: model.ScoreBreakdown{Points: map[string]float64{"age_proximity": 20}, Total: 80}, Reasons: []string{"Similar age"}},
				{CandidateID: "b", Score: 40},
			},
		}

		Convey("When converting it", func() {
			out := types.FromList(list, true)

			Convey("Then ranks are 1-based and fields carried over", func() {
				So(out.FromCache, ShouldBeTrue)
				So(out.Count, ShouldEqual, 2)
				So(out.Scene, ShouldEqual, "dating")
				So(out.GeneratedAt, ShouldEqual, at)
				So(out.Entries[0].Rank, ShouldEqual, 1)
				So(out.Entries[0].Breakdown["age_proximity"], ShouldEqual, 20)
				So(out.Entries[1].Rank, ShouldEqual, 2)
				So(out.Entries[1].CandidateID, ShouldEqual, "b")
			})
		})

		Convey("When converting an empty list", func() {
			out := types.FromList(model.RecommendationList{}, false)

			Convey("Then entries are an empty, non-nil slice", func() {
				So(out.Entries, ShouldNotBeNil)
				So(out.Entries, ShouldBeEmpty)
			})
		})
	})
}

func TestFromAction(t *testing.T) {
	Convey("Given a stored action", t, func() {
		a := model.Action{ID: "x", UserID: "u1", TargetUserID: "u2", Scene: model.SceneHousing, Type: model.ActionFollow}

		Convey("Then conversion keeps every field", func() {
			out := types.FromAction(a)
			So(out.ID, ShouldEqual, "x")
			So(out.Type, ShouldEqual, "follow")
			So(out.Scene, ShouldEqual, "housing")
			So(out.TargetUserID, ShouldEqual, "u2")
		})
	})
}
