package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Runner executes one kind of sync job. Implementations wrap the export
// service (push) and the importer.
type Runner interface {
	Run(ctx context.Context, job *SyncJob) (Outcome, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job *SyncJob) (Outcome, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, job *SyncJob) (Outcome, error) {
	return f(ctx, job)
}

// TerminalError wraps an error that retrying cannot fix; the worker fails
// the job immediately instead of re-queueing it.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// RunnerLookup resolves a Runner for a job kind.
type RunnerLookup func(kind JobKind) (Runner, bool)

// WorkerPool processes queued sync jobs using a pool of goroutines.
type WorkerPool struct {
	store        *JobStore
	runnerLookup RunnerLookup
	cfg          *JobConfig
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, runnerLookup RunnerLookup, cfg *JobConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:        store,
		runnerLookup: runnerLookup,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run starts the worker pool. It spawns cfg.Concurrency goroutines, each
// polling for jobs, and blocks until the context is cancelled and all
// workers finish.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || !wp.cfg.Enabled {
		wp.logger.Info("sync job worker pool disabled")
		return
	}

	wp.logger.Info("sync job worker pool starting",
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
	wp.logger.Info("sync job worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("sync job worker pool stopped")
}

func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	wp.logger.Info("worker started", "workerID", workerID)

	for {
		select {
		case <-ctx.Done():
			wp.logger.Info("worker stopped", "workerID", workerID)
			return
		case <-ticker.C:
			wp.processOne(ctx, workerID)
		}
	}
}

// processOne tries to claim and process a single job.
func (wp *WorkerPool) processOne(ctx context.Context, workerID int) {
	job, err := wp.store.Claim(wp.cfg.MaxRetries)
	if err != nil {
		wp.logger.Error("failed to claim job", "workerID", workerID, "error", err)
		return
	}
	if job == nil {
		return
	}

	wp.logger.Info("processing sync job",
		"workerID", workerID,
		"jobID", job.ID,
		"kind", job.Kind,
		"registry", job.RegistryID,
		"attempt", job.AttemptCount)

	runner, ok := wp.runnerLookup(job.Kind)
	if !ok {
		errMsg := "no runner for job kind: " + string(job.Kind)
		wp.logger.Error(errMsg, "jobID", job.ID)
		if err := wp.store.FailTerminal(job.ID, errMsg); err != nil {
			wp.logger.Error("failed to mark job as failed", "jobID", job.ID, "error", err)
		}
		return
	}

	start := time.Now()
	outcome, err := runner.Run(ctx, job)
	if err != nil {
		wp.logger.Error("sync job failed",
			"workerID", workerID, "jobID", job.ID, "error", err)

		var terminal *TerminalError
		if errors.As(err, &terminal) {
			if failErr := wp.store.FailTerminal(job.ID, err.Error()); failErr != nil {
				wp.logger.Error("failed to mark job as failed", "jobID", job.ID, "error", failErr)
			}
			return
		}
		if failErr := wp.store.Fail(job.ID, err.Error(), wp.cfg.MaxRetries); failErr != nil {
			wp.logger.Error("failed to mark job as failed", "jobID", job.ID, "error", failErr)
		}
		return
	}

	duration := time.Since(start)
	wp.logger.Info("sync job completed",
		"workerID", workerID,
		"jobID", job.ID,
		"commit", outcome.CommitSHA,
		"filesChanged", outcome.FilesChanged,
		"duration", duration.String())

	if err := wp.store.Complete(job.ID, outcome, duration.Milliseconds()); err != nil {
		wp.logger.Error("failed to mark job as complete", "jobID", job.ID, "error", err)
	}
}

// cleanupLoop periodically recovers stuck jobs and prunes old terminal
// jobs.
func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if wp.cfg.ClaimTimeout > 0 {
				recovered, err := wp.store.CleanupStuckJobs(wp.cfg.ClaimTimeout)
				if err != nil {
					wp.logger.Error("failed to cleanup stuck jobs", "error", err)
				} else if recovered > 0 {
					wp.logger.Info("recovered stuck jobs", "count", recovered)
				}
			}

			if wp.cfg.RetentionDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
				deleted, err := wp.store.DeleteOlderThan(cutoff)
				if err != nil {
					wp.logger.Error("failed to delete old jobs", "error", err)
				} else if deleted > 0 {
					wp.logger.Info("deleted old jobs", "count", deleted)
				}
			}
		}
	}
}
