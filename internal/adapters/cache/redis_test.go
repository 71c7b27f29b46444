package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Runs against a live server only when MATCHD_TEST_REDIS_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("MATCHD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MATCHD_TEST_REDIS_ADDR not set")
	}

	Convey("Given a redis cache with a private prefix", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Now()}
		c, err := DialRedis(ctx, addr, 0, WithKeyPrefix("matchd-test:"+uuid.NewString()), WithRedisClock(clock.Now))
		So(err, ShouldBeNil)
		Reset(func() { _ = c.Close() })

		So(c.Set(ctx, "u1", model.SceneDating, listOf("a", "b"), time.Minute), ShouldBeNil)
		So(c.Set(ctx, "u1", model.SceneHousing, listOf("c"), time.Minute), ShouldBeNil)

		Convey("Lists round-trip", func() {
			got, ok, err := c.Get(ctx, "u1", model.SceneDating)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got.CandidateIDs(), ShouldResemble, []string{"a", "b"})
		})

		Convey("Records past their stamped expiry read as absent", func() {
			clock.Advance(2 * time.Minute)
			_, ok, err := c.Get(ctx, "u1", model.SceneDating)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Whole-user invalidation clears every scene", func() {
			So(c.Invalidate(ctx, "u1"), ShouldBeNil)
			_, ok, _ := c.Get(ctx, "u1", model.SceneHousing)
			So(ok, ShouldBeFalse)
		})
	})
}
