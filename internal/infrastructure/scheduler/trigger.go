package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Trigger submits every enabled job on its own interval
type Trigger struct {
	jobs      []JobDefinition
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrigger ticks the given jobs; pass the result of EnabledJobs
func NewTrigger(jobs []JobDefinition, scheduler *Scheduler, logger *zap.Logger) *Trigger {
	return &Trigger{jobs: jobs, scheduler: scheduler, logger: logger.Named("trigger")}
}

func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	for _, job := range t.jobs {
		t.wg.Add(1)
		go t.loop(ctx, job)
	}

	names := make([]string, len(t.jobs))
	for i, j := range t.jobs {
		names[i] = j.Name
	}
	t.logger.Info("trigger started", zap.Strings("jobs", names))
	return nil
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.logger.Info("trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) loop(ctx context.Context, job JobDefinition) {
	defer t.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(job.Name)
		}
	}
}

func (t *Trigger) fire(name string) {
	if _, err := t.scheduler.Submit(name); err != nil {
		level := t.logger.Warn
		if errors.Is(err, ErrSchedulerNotRunning) {
			level = t.logger.Debug
		}
		level("could not submit scheduled job", zap.String("job", name), zap.Error(err))
	}
}

// RunNow submits a job immediately, outside its interval
func (t *Trigger) RunNow(name string) error {
	_, err := t.scheduler.Submit(name)
	return err
}
