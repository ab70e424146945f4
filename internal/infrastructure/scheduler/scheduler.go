package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunStatus is the state of one execution of a job
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// Run is one submitted execution of a job, including its retries
type Run struct {
	ID          uuid.UUID
	Job         JobDefinition
	Status      RunStatus
	Attempts    int
	MaxRetries  int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func newRun(job JobDefinition, maxRetries int) *Run {
	return &Run{ID: uuid.New(), Job: job, Status: RunStatusPending, MaxRetries: maxRetries}
}

func (r *Run) start(now time.Time) {
	r.Status = RunStatusRunning
	r.Attempts++
	r.StartedAt = &now
	r.Error = ""
}

func (r *Run) complete(now time.Time) {
	r.Status = RunStatusSuccess
	r.CompletedAt = &now
}

func (r *Run) fail(now time.Time, err error) {
	r.Status = RunStatusFailed
	r.CompletedAt = &now
	r.Error = err.Error()
}

// shouldRetry reports whether another attempt is allowed; the first attempt
// is not a retry
func (r *Run) shouldRetry() bool {
	return r.Status == RunStatusFailed && r.Attempts <= r.MaxRetries
}

// Config tunes the worker pool
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	QueueSize         int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        30 * time.Second,
		QueueSize:         100,
	}
}

// Scheduler runs submitted jobs on a fixed pool of workers. A failing job is
// retried after RetryDelay up to RetryAttempts times; after that the next
// trigger tick is the retry. Failures never leave the worker.
type Scheduler struct {
	config   Config
	registry *JobRegistry
	logger   *zap.Logger
	now      func() time.Time

	runs      chan *Run
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// onFinish observes finished runs; used by tests
	onFinish func(*Run)
}

func NewScheduler(config Config, registry *JobRegistry, logger *zap.Logger) *Scheduler {
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	return &Scheduler{
		config:   config,
		registry: registry,
		logger:   logger.Named("scheduler"),
		now:      time.Now,
		runs:     make(chan *Run, config.QueueSize),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("retry_attempts", s.config.RetryAttempts),
	)
	return nil
}

// Stop cancels in-flight runs and waits for the workers, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues one run of the named job
func (s *Scheduler) Submit(name string) (uuid.UUID, error) {
	def, ok := s.registry.Get(name)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return uuid.Nil, ErrSchedulerNotRunning
	}

	run := newRun(def, s.config.RetryAttempts)
	select {
	case s.runs <- run:
		s.logger.Debug("job submitted", zap.String("job", name), zap.String("run_id", run.ID.String()))
		return run.ID, nil
	default:
		return uuid.Nil, ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case run := <-s.runs:
			s.process(ctx, run, workerID)
		}
	}
}

// process executes a run, retrying in place after the fixed delay
func (s *Scheduler) process(ctx context.Context, run *Run, workerID int) {
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job", run.Job.Name),
		zap.String("run_id", run.ID.String()),
	)

	for {
		run.start(s.now())
		err := s.execute(ctx, run)
		if err == nil {
			run.complete(s.now())
			log.Info("job completed", zap.Int("attempts", run.Attempts))
			break
		}

		run.fail(s.now(), err)
		log.Error("job failed", zap.Int("attempt", run.Attempts), zap.Error(err))
		if !run.shouldRetry() || ctx.Err() != nil {
			break
		}

		timer := time.NewTimer(s.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.finish(run)
			return
		case <-timer.C:
		}
		log.Info("retrying job", zap.Int("attempt", run.Attempts+1), zap.Int("max_retries", run.MaxRetries))
	}
	s.finish(run)
}

func (s *Scheduler) finish(run *Run) {
	if s.onFinish != nil {
		s.onFinish(run)
	}
}

// execute runs one attempt with a timeout, turning a panic into an error
func (s *Scheduler) execute(ctx context.Context, run *Run) (err error) {
	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}
	jobCtx = logger.WithContext(jobCtx, s.logger.With(zap.String("job", run.Job.Name)))

	jobCtx, span := telemetry.StartSpan(jobCtx, "scheduler.job",
		telemetry.WithAttribute("job.name", run.Job.Name),
		telemetry.WithAttribute("job.attempt", run.Attempts))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", run.Job.Name, r)
		}
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
	}()

	telemetry.WithProfilingLabels(jobCtx, map[string]string{telemetry.ProfilingLabelJob: run.Job.Name}, func(ctx context.Context) {
		err = run.Job.Run(ctx)
	})
	return err
}
