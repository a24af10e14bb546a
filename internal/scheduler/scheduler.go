// Package scheduler runs the periodic jobs that drive the time-based parts of
// the booking lifecycle. It owns no business logic: jobs are closures handed
// in at wiring time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Job is a named periodic task. Run is invoked once per interval; its error
// is logged and the job keeps its schedule.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// tickerFunc returns a tick channel for the interval and a stop function.
// Replaced in tests to drive ticks manually.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Scheduler runs registered jobs until stopped. Start and Stop bracket the
// whole lifecycle; a scheduler is not restartable.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	tick    tickerFunc
	logger  *logging.Logger
}

// New creates an empty scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{tick: realTicker, logger: logger}
}

// WithTicker replaces the tick source for deterministic tests.
func (s *Scheduler) WithTicker(tick tickerFunc) *Scheduler {
	if tick != nil {
		s.tick = tick
	}
	return s
}

// Register adds a job. Registration must happen before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler: register %s: already started", name)
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler: register %s: non-positive interval %s", name, interval)
	}
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
	return nil
}

// Start launches one goroutine per job. The jobs stop when ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler: already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		// Acquire the tick channel before launching the goroutine so channel
		// registration is synchronous and matches job registration order.
		ticks, stop := s.tick(job.Interval)
		s.wg.Add(1)
		go s.runLoop(ctx, job, ticks, stop)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels all jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, job Job, ticks <-chan time.Time, stop func()) {
	defer s.wg.Done()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce isolates a single execution: a panicking or failing job never takes
// the scheduler down or skips its next tick.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "job", job.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			"job", job.Name,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	s.logger.Debug("scheduled job completed",
		"job", job.Name,
		"duration", time.Since(start),
	)
}
