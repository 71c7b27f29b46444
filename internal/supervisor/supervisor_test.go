package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/matchd/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() { //nolint:gochecknoinits // tests log through the global logger
	_ = logger.Init()
}

type fakeServer struct {
	listenErr error
	shutdowns atomic.Int32
	started   chan struct{}
	stop      chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stop)
	}
	return nil
}

type fakeLifecycle struct {
	starts   atomic.Int32
	stops    atomic.Int32
	startErr error
}

func (f *fakeLifecycle) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakeLifecycle) Stop() { f.stops.Add(1) }

func TestHTTPService(t *testing.T) {
	Convey("Given an HTTP service", t, func() {
		Convey("Cancelling the context shuts the server down", func() {
			srv := newFakeServer()
			svc := NewHTTPService(srv, time.Second)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- svc.Serve(ctx) }()

			<-srv.started
			cancel()
			So(errors.Is(<-done, context.Canceled), ShouldBeTrue)
			So(int(srv.shutdowns.Load()), ShouldEqual, 1)
		})

		Convey("A listen failure is returned", func() {
			srv := newFakeServer()
			srv.listenErr = errors.New("address in use")
			err := NewHTTPService(srv, 0).Serve(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "address in use")
		})

		Convey("It names itself for supervisor events", func() {
			So(NewHTTPService(newFakeServer(), 0).String(), ShouldEqual, "http-server")
		})
	})
}

func TestLifecycleService(t *testing.T) {
	Convey("Given a lifecycle service", t, func() {
		Convey("The component is started and stopped around the context", func() {
			comp := &fakeLifecycle{}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- NewLifecycleService("recommendation", comp).Serve(ctx) }()

			cancel()
			<-done
			So(int(comp.starts.Load()), ShouldEqual, 1)
			So(int(comp.stops.Load()), ShouldEqual, 1)
		})

		Convey("A start failure is returned without stopping", func() {
			comp := &fakeLifecycle{startErr: errors.New("boom")}
			err := NewLifecycleService("recommendation", comp).Serve(context.Background())
			So(err, ShouldNotBeNil)
			So(int(comp.stops.Load()), ShouldEqual, 0)
		})
	})
}

func TestSystemMetricsService(t *testing.T) {
	Convey("Given the system metrics sampler", t, func() {
		svc := NewSystemMetricsService(10 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
		defer cancel()

		So(errors.Is(svc.Serve(ctx), context.DeadlineExceeded), ShouldBeTrue)
		So(NewSystemMetricsService(0).interval, ShouldEqual, defaultMetricsInterval)
	})
}

func TestTree(t *testing.T) {
	Convey("Given a supervisor tree", t, func() {
		tree := NewTree(logger.Slog(), TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})

		Convey("Zero values take the defaults", func() {
			So(tree.config.FailureThreshold, ShouldEqual, defaultFailureThreshold)
			So(tree.config.FailureDecay, ShouldEqual, defaultFailureDecay)
			So(tree.config.FailureBackoff, ShouldEqual, 10*time.Millisecond)
		})

		Convey("Services in both layers run until the tree stops", func() {
			comp := &fakeLifecycle{}
			srv := newFakeServer()
			tree.AddCoreService(NewLifecycleService("recommendation", comp))
			tree.AddAPIService(NewHTTPService(srv, time.Second))

			ctx, cancel := context.WithCancel(context.Background())
			errCh := tree.ServeBackground(ctx)
			<-srv.started
			deadline := time.Now().Add(time.Second)
			for comp.starts.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			cancel()

			select {
			case <-errCh:
			case <-time.After(2 * time.Second):
				So("tree did not stop", ShouldBeEmpty)
			}
			So(int(comp.starts.Load()), ShouldBeGreaterThanOrEqualTo, 1)
			So(int(srv.shutdowns.Load()), ShouldEqual, 1)
			report, err := tree.UnstoppedServiceReport()
			So(err, ShouldBeNil)
			So(report, ShouldBeEmpty)
		})
	})
}
