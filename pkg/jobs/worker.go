package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Executor performs the work of a claimed job.
type Executor interface {
	Execute(ctx context.Context, job *Job) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job *Job) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job *Job) (Result, error) { return f(ctx, job) }

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the worker fails the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// WorkerPool processes queued jobs using a pool of goroutines.
type WorkerPool struct {
	store    *JobStore
	executor Executor
	cfg      *JobConfig
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, executor Executor, cfg *JobConfig, logger *slog.Logger) *WorkerPool {
	if cfg == nil {
		cfg = DefaultJobConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:    store,
		executor: executor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run starts the worker pool. It spawns cfg.Concurrency goroutines,
// each polling for jobs. It blocks until the context is cancelled,
// then waits for all workers to finish.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || wp.executor == nil || !wp.cfg.Enabled {
		wp.logger.Info("job worker pool disabled")
		return
	}

	wp.logger.Info("job worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.cleanupLoop(ctx)
	}()

	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("job worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("job worker pool stopped")
}

func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	wp.logger.Debug("worker started", "workerID", workerID)

	for {
		select {
		case <-ctx.Done():
			wp.logger.Debug("worker stopped", "workerID", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for wp.processOne(ctx, workerID) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne claims and runs a single job. It reports whether a job was
// claimed.
func (wp *WorkerPool) processOne(ctx context.Context, workerID int) bool {
	job, err := wp.store.Claim(ctx, wp.cfg.MaxRetries)
	if err != nil {
		if ctx.Err() == nil {
			wp.logger.Error("failed to claim job", "workerID", workerID, "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}

	logger := wp.logger.With("workerID", workerID, "jobID", job.ID, "kind", job.Kind)
	if job.ApplicationID != nil {
		logger = logger.With("applicationID", *job.ApplicationID)
	}
	logger.Info("processing job", "attempt", job.AttemptCount)

	start := time.Now()
	result, err := wp.executor.Execute(ctx, job)
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}

	// Bookkeeping must land even when shutdown canceled the run.
	bctx := context.WithoutCancel(ctx)
	if err != nil {
		var perm *PermanentError
		retry := !errors.As(err, &perm)
		logger.Error("job failed", "retry", retry, "error", err)
		if failErr := wp.store.Fail(bctx, job.ID, err.Error(), wp.cfg.MaxRetries, retry); failErr != nil {
			logger.Error("failed to mark job as failed", "error", failErr)
		}
		return true
	}

	logger.Info("job completed",
		"created", result.Created,
		"existing", result.Existing,
		"duration", result.Duration.String())
	if err := wp.store.Complete(bctx, job.ID, result); err != nil {
		logger.Error("failed to mark job as complete", "error", err)
	}
	return true
}

// cleanupLoop periodically cleans up stuck jobs and old finished jobs.
func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if wp.cfg.ClaimTimeout > 0 {
				recovered, err := wp.store.CleanupStuckJobs(ctx, wp.cfg.ClaimTimeout)
				if err != nil {
					wp.logger.Error("failed to cleanup stuck jobs", "error", err)
				} else if recovered > 0 {
					wp.logger.Info("recovered stuck jobs", "count", recovered)
				}
			}

			if wp.cfg.RetentionDays > 0 {
				cutoff := time.Now().UTC().AddDate(0, 0, -wp.cfg.RetentionDays)
				deleted, err := wp.store.DeleteOlderThan(ctx, cutoff)
				if err != nil {
					wp.logger.Error("failed to delete old jobs", "error", err)
				} else if deleted > 0 {
					wp.logger.Info("deleted old jobs", "count", deleted)
				}
			}
		}
	}
}
