package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/okian/matchd/pkg/logger"
	"github.com/okian/matchd/pkg/metrics"
)

const defaultMetricsInterval = 10 * time.Second

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts an HTTP server to suture.Service.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server; shutdownTimeout bounds graceful shutdown.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve listens until ctx is cancelled, then shuts the server down.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Lifecycle is a component with explicit start and stop.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop()
}

// LifecycleService runs a Lifecycle for as long as it is supervised.
type LifecycleService struct {
	name      string
	component Lifecycle
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component Lifecycle) *LifecycleService {
	return &LifecycleService{name: name, component: component}
}

// Serve starts the component, waits for ctx and stops it.
func (l *LifecycleService) Serve(ctx context.Context) error {
	if err := l.component.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", l.name, err)
	}
	<-ctx.Done()
	l.component.Stop()
	return ctx.Err()
}

func (l *LifecycleService) String() string { return l.name }

// SystemMetricsService samples heap and goroutine counts into metrics.
type SystemMetricsService struct {
	interval time.Duration
}

// NewSystemMetricsService samples every interval.
func NewSystemMetricsService(interval time.Duration) *SystemMetricsService {
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	return &SystemMetricsService{interval: interval}
}

// Serve samples once immediately and then on every tick.
func (s *SystemMetricsService) Serve(ctx context.Context) error {
	logger.Named("system-metrics").Debug(ctx, "sampling runtime metrics", logger.Duration("interval", s.interval))
	sampleRuntime()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sampleRuntime()
		}
	}
}

func (s *SystemMetricsService) String() string { return "system-metrics" }

func sampleRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.HeapAlloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
