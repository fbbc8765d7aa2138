// Package scheduler runs periodic background jobs inside the worker process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobBusy                 = errors.New("job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler runs jobs on cron specs ("0 3 * * *", "@every 15m"). A job never
// overlaps with itself: a trigger that finds the previous run still busy is
// skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

type scheduledJob struct {
	job      Job
	spec     string
	entry    cron.EntryID
	busy     bool
	last     *JobResult
	runs     int64
	failures int64
}

// New creates a scheduler evaluating specs in loc (UTC when nil).
func New(loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("scheduler"))

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{log})),
		log:    log,
		jobs:   make(map[string]*scheduledJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job under a cron spec.
func (s *Scheduler) Register(job Job, spec string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, spec: spec}
	id, err := s.cron.AddFunc(spec, func() {
		if !s.acquire(sj) {
			s.log.Warn("previous run still busy, skipping", logger.String("job", name))
			return
		}
		s.execute(s.ctx, sj)
	})
	if err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}
	sj.entry = id
	s.jobs[name] = sj

	s.log.Info("job registered", logger.String("job", name), logger.String("schedule", spec))
	return nil
}

// Start begins firing jobs. Stop or cancelling ctx ends it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.ctx.Done():
		}
	}()

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !s.acquire(sj) {
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, name)
	}

	res := s.execute(ctx, sj)
	return &res, res.Err
}

func (s *Scheduler) acquire(sj *scheduledJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sj.busy {
		return false
	}
	sj.busy = true
	return true
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) (res JobResult) {
	name := sj.job.Name()
	res = JobResult{JobName: name, StartedAt: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("job panicked: %v", r)
		}
		res.Duration = time.Since(res.StartedAt)

		s.mu.Lock()
		sj.busy = false
		sj.runs++
		if res.Err != nil {
			sj.failures++
		}
		last := res
		sj.last = &last
		s.mu.Unlock()

		log := s.log.With(logger.String("job", name), logger.Latency(res.Duration))
		if res.Err != nil {
			log.Error("job failed", logger.Err(res.Err))
			return
		}
		log.Info("job completed")
	}()

	res.Err = sj.job.Run(ctx)
	return res
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	Runs     int64
	Failures int64
	Last     *JobResult
}

// Jobs returns a snapshot of every registered job.
// NextRun is zero until the scheduler is started.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		out = append(out, JobInfo{
			Name:     name,
			Schedule: sj.spec,
			NextRun:  s.cron.Entry(sj.entry).Next,
			Runs:     sj.runs,
			Failures: sj.failures,
			Last:     sj.last,
		})
	}
	return out
}

// cronLogger routes cron's own messages into the structured logger.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Err(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
