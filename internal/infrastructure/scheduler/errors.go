package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the run queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobNotFound is returned for a job name nobody registered
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when a name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrInvalidJob is returned for a definition without a name, run function or interval
	ErrInvalidJob = errors.New("invalid job definition")
)
