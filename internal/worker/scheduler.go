package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs a pass immediately instead of waiting a full interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs each job on its own ticker. Passes of one job never
// overlap; Trigger queues at most one extra pass.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*runner
	started bool
	stopped bool
	onStop  []func(context.Context) error

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type runner struct {
	job     Job
	forceCh chan struct{}
}

// ErrUnknownJob is returned by Trigger for unregistered names.
var ErrUnknownJob = errors.New("unknown job")

// ErrStopped is returned once the scheduler no longer accepts work.
var ErrStopped = errors.New("scheduler stopped")

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		jobs:   make(map[string]*runner),
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval <= 0 {
		return fmt.Errorf("invalid job %q", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("register %s: scheduler already started", job.Name)
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("register %s: duplicate job", job.Name)
	}
	s.jobs[job.Name] = &runner{job: job, forceCh: make(chan struct{}, 1)}
	return nil
}

// OnStop registers fn to run after every job has stopped, e.g. a final
// persistence flush.
func (s *Scheduler) OnStop(fn func(context.Context) error) {
	s.mu.Lock()
	s.onStop = append(s.onStop, fn)
	s.mu.Unlock()
}

// Start launches one goroutine per job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	for _, r := range s.jobs {
		s.wg.Add(1)
		go s.loop(r)
	}
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Trigger queues an immediate pass of the named job.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	r, ok := s.jobs[name]
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	select {
	case r.forceCh <- struct{}{}:
	default:
		// A pass is already queued.
	}
	return nil
}

// Stop stops accepting triggers and waits for in-flight passes. If ctx
// expires first, passes are cancelled and awaited. OnStop hooks run last.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	hooks := append([]func(context.Context) error(nil), s.onStop...)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("cancelling in-flight passes")
		s.cancel()
		<-done
	}
	s.cancel()

	var errs []error
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("scheduler stopped")
	return errors.Join(errs...)
}

func (s *Scheduler) loop(r *runner) {
	defer s.wg.Done()

	if r.job.RunOnStart {
		s.runPass(r)
	}

	ticker := time.NewTicker(r.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		select {
		case <-ticker.C:
			s.runPass(r)
		case <-r.forceCh:
			s.runPass(r)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) runPass(r *runner) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("job panicked", zap.String("job", r.job.Name), zap.Any("panic", rec))
		}
	}()
	if err := r.job.Run(s.ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", r.job.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("job finished", zap.String("job", r.job.Name), zap.Duration("took", time.Since(start)))
}
