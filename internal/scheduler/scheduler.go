package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one recurring unit of work.
type Job struct {
	Name        string
	Description string
	Schedule    Schedule
	Handler     func(ctx context.Context) error

	mu      sync.Mutex
	running bool
	nextRun time.Time
	lastRun time.Time
	lastErr error
	runs    int
	skipped int
}

type JobStatus struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	Running     bool      `json:"running"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
	Skipped     int       `json:"skipped"`
}

func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := JobStatus{
		Name:        j.Name,
		Description: j.Description,
		Schedule:    j.Schedule.String(),
		Running:     j.running,
		NextRun:     j.nextRun,
		LastRun:     j.lastRun,
		Runs:        j.runs,
		Skipped:     j.skipped,
	}
	if j.lastErr != nil {
		st.LastError = j.lastErr.Error()
	}
	return st
}

// Scheduler fires registered jobs on their schedules. Each job has its own
// timer goroutine, so a slow job never delays another. A job whose previous
// run has not finished skips that firing.
type Scheduler struct {
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	jobs   []*Job
	stopCh chan struct{}
	loops  sync.WaitGroup // timer goroutines

	// handler runs in flight; idle is closed when active drops to zero
	runMu  sync.Mutex
	active int
	idle   chan struct{}
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{loc: loc, logger: logger, now: time.Now}
}

// Register adds a job. Jobs registered while running start with the next Start.
func (s *Scheduler) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.mu.Lock()
	job.nextRun = job.Schedule.next(s.now(), s.loc)
	next := job.nextRun
	job.mu.Unlock()
	s.jobs = append(s.jobs, job)

	s.logger.Info("Job registered",
		zap.String("job", job.Name),
		zap.String("schedule", job.Schedule.String()),
		zap.Time("next_run", next),
	)
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// Start arms every registered job. Calling Start while running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}

	s.stopCh = make(chan struct{})
	for _, job := range s.jobs {
		s.loops.Add(1)
		go s.loop(job, s.stopCh)
	}
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop disarms all jobs and waits for the timer goroutines to exit. Runs
// already in progress are left to finish; use Wait to block on them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.mu.Unlock()

	s.loops.Wait()
	s.logger.Info("Scheduler stopped")
}

// Wait blocks until in-flight runs finish or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.runMu.Lock()
	if s.active == 0 {
		s.runMu.Unlock()
		return nil
	}
	idle := s.idle
	s.runMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	jobs := make([]*Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	statuses := make([]JobStatus, len(jobs))
	for i, j := range jobs {
		statuses[i] = j.Status()
	}
	return statuses
}

func (s *Scheduler) loop(job *Job, stop <-chan struct{}) {
	defer s.loops.Done()

	for {
		next := job.Schedule.next(s.now(), s.loc)
		job.mu.Lock()
		job.nextRun = next
		job.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		s.fire(job)
	}
}

// fire starts a run unless the previous one is still going.
func (s *Scheduler) fire(job *Job) {
	job.mu.Lock()
	if job.running {
		job.skipped++
		job.mu.Unlock()
		s.logger.Warn("Previous run still in progress, skipping", zap.String("job", job.Name))
		return
	}
	job.running = true
	job.mu.Unlock()

	s.runMu.Lock()
	if s.active == 0 {
		s.idle = make(chan struct{})
	}
	s.active++
	s.runMu.Unlock()

	go s.run(job)
}

func (s *Scheduler) run(job *Job) {
	defer func() {
		s.runMu.Lock()
		s.active--
		if s.active == 0 {
			close(s.idle)
		}
		s.runMu.Unlock()
	}()

	start := time.Now()
	s.logger.Info("Job started", zap.String("job", job.Name))

	err := s.call(job)
	elapsed := time.Since(start)

	job.mu.Lock()
	job.running = false
	job.lastRun = start
	job.lastErr = err
	job.runs++
	job.mu.Unlock()

	if err != nil {
		s.logger.Error("Job failed", zap.String("job", job.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	s.logger.Info("Job finished", zap.String("job", job.Name), zap.Duration("elapsed", elapsed))
}

// call shields the scheduler from a panicking handler.
func (s *Scheduler) call(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error("Job panicked", zap.String("job", job.Name), zap.ByteString("stack", debug.Stack()))
		}
	}()
	return job.Handler(context.Background())
}
