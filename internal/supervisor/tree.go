// Package supervisor runs matchd's long-lived components under a suture
// supervisor tree: the HTTP server, the recommendation service lifecycle
// and the system metrics sampler.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Tree defaults.
const (
	defaultFailureThreshold = 5.0
	defaultFailureDecay     = 30.0
	defaultFailureBackoff   = 15 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
)

// TreeConfig tunes restart behavior.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func (c TreeConfig) withDefaults() TreeConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = defaultFailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = defaultFailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// Tree has two layers. Core holds the recommendation service and background
// samplers; api holds the HTTP server, so a crashing listener is restarted
// without touching the scheduler.
type Tree struct {
	root   *suture.Supervisor
	core   *suture.Supervisor
	api    *suture.Supervisor
	config TreeConfig
}

// NewTree builds the tree and routes supervisor events to l.
func NewTree(l *slog.Logger, config TreeConfig) *Tree {
	config = config.withDefaults()

	hook := (&sutureslog.Handler{Logger: l}).MustHook()
	spec := suture.Spec{
		EventHook:        hook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	child := spec
	child.EventHook = nil

	root := suture.New("matchd", spec)
	core := suture.New("core", child)
	api := suture.New("api", child)
	root.Add(core)
	root.Add(api)

	return &Tree{root: root, core: core, api: api, config: config}
}

// AddCoreService supervises svc in the core layer.
func (t *Tree) AddCoreService(svc suture.Service) suture.ServiceToken {
	return t.core.Add(svc)
}

// AddAPIService supervises svc in the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine; the channel yields its result.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
