package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "matchd")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "unit")
				So(manager.latencyBuckets, ShouldResemble, []float64{1, 10})
			})
		})

		Convey("When swapping in a nil manager", func() {
			So(Use(nil), ShouldEqual, ErrMetricsNotInitialized)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithPrometheusRegistry(registry))
		previous := current()
		So(Use(manager), ShouldBeNil)
		Reset(func() { _ = Use(previous) })

		Convey("When recording cache traffic", func() {
			RecordCacheHit("dating")
			RecordCacheHit("dating")
			RecordCacheMiss("dating")
			RecordCacheEvictions("expired", 3)
			RecordCacheEvictions("expired", 0)
			UpdateCacheEntries(7)

			Convey("Then the counters reflect it", func() {
				So(testutil.ToFloat64(manager.cacheHits.WithLabelValues("dating")), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.cacheMisses.WithLabelValues("dating")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.cacheEvictions.WithLabelValues("expired")), ShouldEqual, 3)
				So(testutil.ToFloat64(manager.cacheEntries), ShouldEqual, 7)
			})
		})

		Convey("When recording job runs", func() {
			RecordJobRun("hourly_cleanup", true, 12, 1700000000)
			RecordJobRun("hourly_cleanup", false, 3, 1700000060)
			UpdateJobRunning("hourly_cleanup", true)

			Convey("Then success and failure are split", func() {
				So(testutil.ToFloat64(manager.jobRuns.WithLabelValues("hourly_cleanup", "success")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.jobRuns.WithLabelValues("hourly_cleanup", "failure")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.jobLastRun.WithLabelValues("hourly_cleanup")), ShouldEqual, 1700000060)
				So(testutil.ToFloat64(manager.jobRunning.WithLabelValues("hourly_cleanup")), ShouldEqual, 1)
			})
		})

		Convey("When recording the remaining collectors", func() {
			So(func() {
				RecordGeneration("housing", "ok")
				RecordGenerationLatency("housing", 4.2)
				RecordCandidatePoolSize("housing", 50)
				ObserveCompatibilityScore("housing", 92)
				RecordAction("housing", "like")
				RecordBatchTask("housing", false)
				UpdateActiveUsers(10)
				UpdateActiveProfiles(14)
				RecordUpstreamError("profile_store", "get_profile")
				UpdateBreakerState("profile_store", 2)
				RecordHTTPRequest("/healthz", "GET", "200", 0.3)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(manager.activeProfile), ShouldEqual, 14)
			So(testutil.ToFloat64(manager.breakerState.WithLabelValues("profile_store")), ShouldEqual, 2)
		})
	})
}

func TestDefaultRegistry(t *testing.T) {
	Convey("Given the default registry", t, func() {
		So(GetRegistry(), ShouldNotBeNil)
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)
		So(families, ShouldNotBeNil)
	})
}
