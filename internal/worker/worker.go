// Package worker runs per-user batch tasks with bounded concurrency and
// failure isolation.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/pkg/logger"
	"github.com/okian/matchd/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkerMultiplier = 2
	defaultMaxErrors        = 20
)

// Task is one unit of batch work.
type Task struct {
	UserID string
	Scene  model.Scene
}

// Handler processes a single task.
type Handler func(ctx context.Context, t Task) error

// SceneReport counts outcomes for one scene.
type SceneReport struct {
	Succeeded int
	Failed    int
}

// Report summarizes a Process call.
type Report struct {
	Submitted int
	Succeeded int
	Failed    int
	// Skipped counts tasks never started because ctx was done.
	Skipped  int
	Scenes   map[model.Scene]*SceneReport
	Errors   []error
	Duration time.Duration
}

// Pool fans tasks out to at most size concurrent handlers.
type Pool struct {
	size      int
	name      string
	maxErrors int
	logger    logger.Logger
}

// NewPool creates a pool. A size below one defaults to twice the CPU count.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		size:      size,
		name:      "worker-pool",
		maxErrors: defaultMaxErrors,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named(p.name)
	}
	return p
}

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

// Process runs h for every task. A failing task never stops the others;
// cancelling ctx stops scheduling new tasks and lets running ones finish.
func (p *Pool) Process(ctx context.Context, tasks []Task, h Handler) Report {
	start := time.Now()
	rep := Report{Submitted: len(tasks), Scenes: make(map[model.Scene]*SceneReport)}
	var mu sync.Mutex

	record := func(t Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		sr := rep.Scenes[t.Scene]
		if sr == nil {
			sr = &SceneReport{}
			rep.Scenes[t.Scene] = sr
		}
		if err == nil {
			rep.Succeeded++
			sr.Succeeded++
			return
		}
		rep.Failed++
		sr.Failed++
		if len(rep.Errors) < p.maxErrors {
			rep.Errors = append(rep.Errors, fmt.Errorf("%s/%s: %w", t.Scene, t.UserID, err))
		}
	}

	var g errgroup.Group
	g.SetLimit(p.size)
	for i, t := range tasks {
		if ctx.Err() != nil {
			rep.Skipped = len(tasks) - i
			break
		}
		g.Go(func() error {
			err := runSafely(ctx, h, t)
			metrics.RecordBatchTask(string(t.Scene), err == nil)
			if err != nil {
				p.logger.Warn(ctx, "batch task failed",
					logger.String("user_id", t.UserID),
					logger.String("scene", string(t.Scene)),
					logger.Error(err))
			}
			record(t, err)
			return nil
		})
	}
	_ = g.Wait()

	rep.Duration = time.Since(start)
	return rep
}

func runSafely(ctx context.Context, h Handler, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, t)
}
