package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/matchd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newSQLiteStore(ctx context.Context) *SQLStore {
	s, err := OpenSQL(ctx, DriverSQLite, ":memory:")
	So(err, ShouldBeNil)
	So(s.EnsureSchema(ctx), ShouldBeNil)
	return s
}

func TestSQLStore(t *testing.T) {
	Convey("Given a sqlite backed store", t, func() {
		ctx := context.Background()
		s := newSQLiteStore(ctx)
		Reset(func() { _ = s.Close() })

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		So(s.UpsertProfile(ctx, seekerProfile("u1", base)), ShouldBeNil)
		So(s.UpsertProfile(ctx, providerProfile("p1", base.Add(time.Minute))), ShouldBeNil)
		So(s.UpsertProfile(ctx, providerProfile("p2", base.Add(2*time.Minute))), ShouldBeNil)

		Convey("Profiles round-trip with their attributes", func() {
			p, err := s.GetProfile(ctx, "p1", model.SceneHousing)
			So(err, ShouldBeNil)
			So(p.Role, ShouldEqual, model.RoleProvider)
			price, ok := p.Attributes.Number("housing_price")
			So(ok, ShouldBeTrue)
			So(price, ShouldEqual, 4000)
			So(p.UpdatedAt.Equal(base.Add(time.Minute)), ShouldBeTrue)
		})

		Convey("Missing profiles are NotFound", func() {
			_, err := s.GetProfile(ctx, "ghost", model.SceneHousing)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Candidates exclude the requester and honor role and limit", func() {
			got, err := s.QueryActiveCandidates(ctx, model.SceneHousing, model.RoleProvider, "u1", 10)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].UserID, ShouldEqual, "p2")

			got, err = s.QueryActiveCandidates(ctx, model.SceneHousing, "", "p2", 1)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(got[0].UserID, ShouldEqual, "p1")
		})

		Convey("Upserting an inactive profile hides it", func() {
			p := providerProfile("p2", base.Add(3*time.Minute))
			p.Active = false
			So(s.UpsertProfile(ctx, p), ShouldBeNil)
			got, _ := s.QueryActiveCandidates(ctx, model.SceneHousing, model.RoleProvider, "u1", 10)
			So(got, ShouldHaveLength, 1)

			stats, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats.ActiveProfiles, ShouldEqual, 2)
			So(stats.ActiveUsers, ShouldEqual, 2)
		})

		Convey("ActiveUsers lists user ids", func() {
			ids, err := s.ActiveUsers(ctx, model.SceneHousing, 10)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"p2", "p1", "u1"})
		})

		Convey("Actions are recorded, read back and purged by age", func() {
			now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			cutoff := now.Add(-30 * 24 * time.Hour)
			So(s.Record(ctx, model.Action{UserID: "u1", TargetUserID: "p1", Scene: model.SceneHousing, Type: model.ActionLike, CreatedAt: cutoff.Add(-time.Millisecond)}), ShouldBeNil)
			So(s.Record(ctx, model.Action{UserID: "u1", TargetUserID: "p2", Scene: model.SceneHousing, Type: model.ActionPass, CreatedAt: cutoff}), ShouldBeNil)

			acted, err := s.GetActedTargets(ctx, "u1", model.SceneHousing)
			So(err, ShouldBeNil)
			So(acted, ShouldHaveLength, 2)

			n, err := s.DeleteOlderThan(ctx, cutoff)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			acted, _ = s.GetActedTargets(ctx, "u1", model.SceneHousing)
			So(acted, ShouldContainKey, "p2")
			So(acted, ShouldNotContainKey, "p1")
		})

		Convey("Stale matches are deactivated", func() {
			now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			_, err := s.DB().ExecContext(ctx, `INSERT INTO matches (id, user_id, other_user_id, scene, is_active, last_activity_at) VALUES
				('m1', 'u1', 'p1', 'housing', TRUE, ?), ('m2', 'u1', 'p2', 'housing', TRUE, ?)`,
				now.Add(-8*24*time.Hour).UnixMilli(), now.Add(-time.Hour).UnixMilli())
			So(err, ShouldBeNil)

			n, err := s.DeactivateStale(ctx, now.Add(-7*24*time.Hour))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	Convey("Unknown drivers are rejected before connecting", t, func() {
		_, err := OpenSQL(context.Background(), "oracle", "")
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}
