// Package scheduler runs the recurring batch jobs that keep recommendations
// fresh and clean up stale state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchd/pkg/logger"
	"github.com/okian/matchd/pkg/metrics"
)

const defaultTick = time.Minute

// Sentinel kinds for scheduler errors.
var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrJobRunning     = errors.New("job already running")
	ErrDuplicateJob   = errors.New("job already registered")
	ErrInvalidJob     = errors.New("invalid job")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Trigger sources recorded on a JobRun.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// Job is one recurring unit of batch work.
type Job interface {
	Name() string
	Run(ctx context.Context) (Outcome, error)
}

// Outcome is what a job reports back. Per-item failures belong in Failures
// and Summary; an error from Run means the job could not do its work at all.
type Outcome struct {
	Summary  string
	Items    int
	Failures int
}

// JobRun is the most recent run of a job.
type JobRun struct {
	JobName   string        `json:"job_name"`
	RunID     string        `json:"run_id"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	LastRunAt time.Time     `json:"last_run_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Summary   string        `json:"summary"`
	Items     int           `json:"items"`
	Failures  int           `json:"failures"`
}

type entry struct {
	job      Job
	interval time.Duration
	running  bool
	nextDue  time.Time
	last     *JobRun
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithTick sets how often due jobs are checked.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler owns per-job state. Every job moves Idle -> Running -> Idle and
// never overlaps with itself; different jobs may run at the same time. All
// state is guarded by mu.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	tick    time.Duration
	now     func() time.Time
	logger  logger.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler with no jobs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs: make(map[string]*entry),
		tick: defaultTick,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}
	return s
}

// Register adds job to run every interval, first due one interval from now.
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	if job == nil || job.Name() == "" || interval <= 0 {
		return ErrInvalidJob
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
	}
	s.jobs[job.Name()] = &entry{job: job, interval: interval, nextDue: s.now().Add(interval)}
	return nil
}

// Jobs lists registered job names in lexical order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the timer loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(loopCtx)
	s.logger.Info(ctx, "scheduler started", logger.Duration("tick", s.tick), logger.Any("jobs", s.Jobs()))
	return nil
}

// Stop cancels the loop and any timer-driven runs and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPending(ctx)
		}
	}
}

// RunPending starts every due, idle job in the background and returns how
// many were started.
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.now()
	var due []*entry
	s.mu.Lock()
	for _, e := range s.jobs {
		if e.running || now.Before(e.nextDue) {
			continue
		}
		e.running = true
		e.nextDue = now.Add(e.interval)
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.execute(ctx, e, TriggerTimer)
		}(e)
	}
	return len(due)
}

// TriggerManually runs the named job synchronously. It fails with
// ErrJobRunning when the job is already in progress.
func (s *Scheduler) TriggerManually(ctx context.Context, name string) (JobRun, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return JobRun{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if e.running {
		s.mu.Unlock()
		return JobRun{
			JobName:   name,
			Trigger:   TriggerManual,
			LastRunAt: s.now(),
			Summary:   "not started: previous run still in progress",
		}, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	e.running = true
	s.mu.Unlock()

	return s.execute(ctx, e, TriggerManual), nil
}

// Status returns a snapshot of the last run of every job that has run.
func (s *Scheduler) Status() map[string]JobRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]JobRun, len(s.jobs))
	for name, e := range s.jobs {
		if e.last != nil {
			out[name] = *e.last
		}
	}
	return out
}

// Running reports whether the named job is in progress.
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	return ok && e.running
}

// execute runs a job the caller already marked as running.
func (s *Scheduler) execute(ctx context.Context, e *entry, trigger string) JobRun {
	name := e.job.Name()
	run := JobRun{JobName: name, RunID: uuid.NewString(), Trigger: trigger, StartedAt: s.now()}
	metrics.UpdateJobRunning(name, true)
	s.logger.Info(ctx, "job started", logger.String("job", name), logger.String("trigger", trigger), logger.String("run_id", run.RunID))

	out, err := runJob(ctx, e.job)

	run.LastRunAt = s.now()
	run.Duration = run.LastRunAt.Sub(run.StartedAt)
	run.Items = out.Items
	run.Failures = out.Failures
	run.Summary = out.Summary
	run.Success = err == nil
	if err != nil {
		if run.Summary == "" {
			run.Summary = err.Error()
		} else {
			run.Summary = run.Summary + "; " + err.Error()
		}
	}

	s.mu.Lock()
	e.running = false
	e.last = &run
	s.mu.Unlock()

	metrics.UpdateJobRunning(name, false)
	metrics.RecordJobRun(name, run.Success, float64(run.Duration.Milliseconds()), run.LastRunAt.Unix())
	fields := []logger.Field{
		logger.String("job", name),
		logger.String("run_id", run.RunID),
		logger.Bool("success", run.Success),
		logger.Duration("duration", run.Duration),
		logger.String("summary", run.Summary),
	}
	if run.Success {
		s.logger.Info(ctx, "job finished", fields...)
	} else {
		s.logger.Error(ctx, "job failed", fields...)
	}
	return run
}

func runJob(ctx context.Context, job Job) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// Serve runs the scheduler until ctx is done, for use under a supervisor.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}
